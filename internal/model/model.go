package model

import (
	"time"

	"github.com/samber/mo"

	"pdxevents/internal/recurrence"
)

// Status tracks the admin review state of a submitted event.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known review states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Event is a listed event as persisted. The recurrence fields mirror the
// stored columns: RecurrenceType/RecurrencePattern are only present when
// IsRecurring is true, and RecurrenceEndDate is carried through untouched.
type Event struct {
	ID          string
	Title       string
	Description string
	Venue       string

	// StartDate is the next (or only) date the event happens on.
	StartDate recurrence.Date
	// StartTime is the local wall-clock start ("19:30"); empty means all day.
	StartTime string

	IsRecurring       bool
	RecurrenceType    mo.Option[recurrence.Type]
	RecurrencePattern mo.Option[recurrence.Pattern]
	RecurrenceEndDate mo.Option[recurrence.Date]

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Series returns the recurrence pattern when the event is a live series.
func (e Event) Series() (recurrence.Pattern, bool) {
	if !e.IsRecurring {
		return recurrence.Pattern{}, false
	}
	return e.RecurrencePattern.Get()
}

// EndedBefore reports whether the series' end date lies before d.
func (e Event) EndedBefore(d recurrence.Date) bool {
	end, ok := e.RecurrenceEndDate.Get()
	return ok && end.Before(d)
}

// Occurrence is a single concrete date of an event after series expansion.
type Occurrence struct {
	EventID string

	// InstanceKey uniquely identifies one occurrence of a series.
	InstanceKey string

	Title     string
	Venue     string
	Date      recurrence.Date
	StartTime string

	// Pattern is set for occurrences produced from a series.
	Pattern mo.Option[recurrence.Pattern]
}
