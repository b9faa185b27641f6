package events

import (
	"errors"
	"slices"
	"strings"

	"github.com/samber/mo"

	appLog "pdxevents/internal/log"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how series expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive date window for occurrences.
	RangeStart recurrence.Date
	RangeEnd   recurrence.Date

	// MaxOccurrencesPerEvent is a safety cap per series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and information about
// truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence `json:"occurrences"`
	// TruncatedEvents records event IDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string `json:"truncated_events,omitempty"`
}

// ExpandOccurrences turns events into dated occurrences inside the window:
//
//   - One-off events yield their start date when it falls in range.
//   - Recurring events yield every pattern date from their start date up to
//     the end of the window or their end date, whichever is earlier.
//
// Occurrences are ordered by date, then start time, then title.
func ExpandOccurrences(events []*model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0, len(events))
	for _, e := range events {
		occ, hitCap := expandEvent(e, cfg)
		all = append(all, occ...)

		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, e.ID)
			appLog.Error("expand: truncated occurrences for event due to cap",
				errors.New("max occurrences reached"),
				"id", e.ID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	slices.SortStableFunc(all, func(a, b model.Occurrence) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})

	result.Occurrences = all
	return result, nil
}

func expandEvent(e *model.Event, cfg ExpandConfig) ([]model.Occurrence, bool) {
	p, ok := e.Series()
	if !ok {
		if e.StartDate.Before(cfg.RangeStart) || e.StartDate.After(cfg.RangeEnd) {
			return nil, false
		}
		return []model.Occurrence{makeOccurrence(e, e.StartDate, mo.None[recurrence.Pattern]())}, false
	}

	from := cfg.RangeStart
	if e.StartDate.After(from) {
		from = e.StartDate
	}
	to := cfg.RangeEnd
	if end, ok := e.RecurrenceEndDate.Get(); ok && end.Before(to) {
		to = end
	}
	if to.Before(from) {
		return nil, false
	}

	dates, truncated := recurrence.Occurrences(p, from, to, cfg.MaxOccurrencesPerEvent)
	out := make([]model.Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, makeOccurrence(e, d, mo.Some(p)))
	}
	return out, truncated
}

// makeOccurrence builds one dated instance of e.
func makeOccurrence(e *model.Event, d recurrence.Date, p mo.Option[recurrence.Pattern]) model.Occurrence {
	return model.Occurrence{
		EventID: e.ID,
		// InstanceKey: event ID plus date is stable across rollovers.
		InstanceKey: e.ID + "@" + d.String(),
		Title:       e.Title,
		Venue:       e.Venue,
		Date:        d,
		StartTime:   e.StartTime,
		Pattern:     p,
	}
}
