package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rrule-go serves as an independent oracle for the resolver.
func TestNextDateForPattern_MatchesRRule(t *testing.T) {
	for from := NewDate(2024, time.January, 1); from.Year == 2024; from = from.AddDays(1) {
		for _, p := range allPatterns() {
			rule, err := ToRRule(p, from, mo.None[Date]())
			require.NoError(t, err)

			want := DateOf(rule.After(from.Time(time.UTC), true))
			got, err := NextDateForPattern(from, p)
			require.NoError(t, err)
			require.Equal(t, want, got, "%s from %s", p, from)
		}
	}
}

func TestToRRule_Until(t *testing.T) {
	rule, err := ToRRule(MustParsePattern("last-sunday"), NewDate(2024, time.January, 1), mo.Some(NewDate(2024, time.April, 28)))
	require.NoError(t, err)

	got := rule.All()
	dates := make([]Date, len(got))
	for i, ts := range got {
		dates[i] = DateOf(ts)
	}
	assert.Equal(t, []Date{
		NewDate(2024, time.January, 28),
		NewDate(2024, time.February, 25),
		NewDate(2024, time.March, 31),
		NewDate(2024, time.April, 28),
	}, dates)
}

func TestRRuleString_RoundTrip(t *testing.T) {
	for _, p := range allPatterns() {
		s, err := RRuleString(p, mo.None[Date]())
		require.NoError(t, err)
		if p.IsWeekly() {
			assert.Contains(t, s, "FREQ=WEEKLY")
		} else {
			assert.Contains(t, s, "FREQ=MONTHLY")
		}
		assert.NotContains(t, s, "DTSTART")

		back, err := PatternFromRRule(s)
		require.NoError(t, err, s)
		assert.Equal(t, p, back, s)
	}
}

func TestPatternFromRRule(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "weekly", input: "FREQ=WEEKLY;BYDAY=MO", want: "every-monday"},
		{name: "with prefix", input: "RRULE:FREQ=MONTHLY;BYDAY=-1SU", want: "last-sunday"},
		{name: "bysetpos", input: "FREQ=MONTHLY;BYDAY=TH;BYSETPOS=2", want: "second-thursday"},
		{name: "nth byday", input: "FREQ=MONTHLY;BYDAY=1FR", want: "first-friday"},
		{name: "daily", input: "FREQ=DAILY", wantErr: true},
		{name: "two weekdays", input: "FREQ=WEEKLY;BYDAY=MO,WE", wantErr: true},
		{name: "biweekly", input: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO", wantErr: true},
		{name: "monthly without occurrence", input: "FREQ=MONTHLY;BYDAY=MO", wantErr: true},
		{name: "second to last", input: "FREQ=MONTHLY;BYDAY=-2MO", wantErr: true},
		{name: "not a rule", input: "banana", wantErr: true},
		{name: "until kept out of the pattern", input: "FREQ=WEEKLY;BYDAY=TU;UNTIL=20240630T000000Z", want: "every-tuesday"},
		{name: "count", input: "FREQ=WEEKLY;BYDAY=MO;COUNT=3", wantErr: true},
		{name: "bymonth", input: "FREQ=MONTHLY;BYDAY=1MO;BYMONTH=1", wantErr: true},
		{name: "bymonthday", input: "FREQ=MONTHLY;BYDAY=2TU;BYMONTHDAY=8,9,10", wantErr: true},
		{name: "byhour", input: "FREQ=WEEKLY;BYDAY=FR;BYHOUR=18", wantErr: true},
		{name: "bysetpos with ordinal byday", input: "FREQ=MONTHLY;BYDAY=1MO;BYSETPOS=3", wantErr: true},
		{name: "bysetpos on weekly", input: "FREQ=WEEKLY;BYDAY=MO;BYSETPOS=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PatternFromRRule(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
