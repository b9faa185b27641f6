package events

import (
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

func seriesEvent(id, start, pattern string) *model.Event {
	p := recurrence.MustParsePattern(pattern)
	return &model.Event{
		ID:                id,
		Title:             id,
		StartDate:         date(start),
		IsRecurring:       true,
		RecurrenceType:    mo.Some(p.Type()),
		RecurrencePattern: mo.Some(p),
		Status:            model.StatusApproved,
	}
}

func TestExpandOccurrencesRejectsInvertedRange(t *testing.T) {
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: date("2024-02-01"), RangeEnd: date("2024-01-01")})
	assert.Error(t, err)
}

func TestExpandOccurrencesMonthly(t *testing.T) {
	e := seriesEvent("trivia", "2024-01-31", "last-wednesday")

	res, err := ExpandOccurrences([]*model.Event{e}, ExpandConfig{
		RangeStart: date("2024-01-01"),
		RangeEnd:   date("2024-04-30"),
	})
	require.NoError(t, err)

	var got []string
	for _, o := range res.Occurrences {
		got = append(got, o.Date.String())
		assert.Equal(t, "trivia@"+o.Date.String(), o.InstanceKey)
		assert.Equal(t, mo.Some(recurrence.MustParsePattern("last-wednesday")), o.Pattern)
	}
	assert.Equal(t, []string{"2024-01-31", "2024-02-28", "2024-03-27", "2024-04-24"}, got)
}

func TestExpandOccurrencesStartsAtEventStart(t *testing.T) {
	e := seriesEvent("jam", "2024-01-15", "every-monday")

	res, err := ExpandOccurrences([]*model.Event{e}, ExpandConfig{
		RangeStart: date("2024-01-01"),
		RangeEnd:   date("2024-01-31"),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3)
	assert.Equal(t, "2024-01-15", res.Occurrences[0].Date.String())
}

func TestExpandOccurrencesCap(t *testing.T) {
	e := seriesEvent("daily-ish", "2024-01-01", "every-tuesday")

	res, err := ExpandOccurrences([]*model.Event{e}, ExpandConfig{
		RangeStart:             date("2024-01-01"),
		RangeEnd:               date("2024-12-31"),
		MaxOccurrencesPerEvent: 3,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 3)
	assert.Equal(t, []string{"daily-ish"}, res.TruncatedEvents)
}

func TestExpandOccurrencesOrdering(t *testing.T) {
	late := &model.Event{ID: "b", Title: "B", StartDate: date("2024-01-03"), StartTime: "21:00"}
	early := &model.Event{ID: "a", Title: "A", StartDate: date("2024-01-03"), StartTime: "18:00"}
	outside := &model.Event{ID: "c", Title: "C", StartDate: date("2024-03-01")}

	res, err := ExpandOccurrences([]*model.Event{late, outside, early}, ExpandConfig{
		RangeStart: date("2024-01-01"),
		RangeEnd:   date("2024-01-31"),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, "a", res.Occurrences[0].EventID)
	assert.Equal(t, "b", res.Occurrences[1].EventID)
	assert.True(t, res.Occurrences[0].Pattern.IsAbsent())
}
