package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	appLog "pdxevents/internal/log"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
	"pdxevents/internal/store"
)

var (
	// ErrInvalidEvent wraps every validation failure of a submitted draft.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrSeriesEnded means the first occurrence falls after the end date.
	ErrSeriesEnded = errors.New("recurring series has ended")
)

// Store is the persistence the service needs. *store.EventStore satisfies it.
type Store interface {
	Create(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, e *model.Event) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, f store.ListFilter) ([]*model.Event, error)
	SetStatus(ctx context.Context, id string, status model.Status) error
	SetStartDate(ctx context.Context, id string, d recurrence.Date) error
}

// Options tunes recurrence handling. Zero values fall back to defaults.
type Options struct {
	SearchMonths           int
	PersistFifth           bool
	MaxOccurrencesPerEvent int
}

// Draft is an event as submitted, before any recurrence resolution.
type Draft struct {
	Title       string
	Description string
	Venue       string
	// Date is the date the submitter picked; recurring drafts start on the
	// first pattern date on or after it.
	Date      recurrence.Date
	StartTime string
	// Pattern is the raw recurrence pattern; empty for one-off events.
	Pattern string
	EndDate mo.Option[recurrence.Date]
}

// Service implements event submission, review and series maintenance on
// top of a Store.
type Service struct {
	store Store
	opts  Options
}

func NewService(s Store, opts Options) *Service {
	if opts.SearchMonths <= 0 {
		opts.SearchMonths = recurrence.MaxMonthAdvances
	}
	if opts.MaxOccurrencesPerEvent <= 0 {
		opts.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	return &Service{store: s, opts: opts}
}

// Submit validates d and stores it as a pending event. For recurring
// drafts the stored start date is the first occurrence on or after d.Date.
func (s *Service) Submit(ctx context.Context, d Draft) (*model.Event, error) {
	e, err := s.build(d)
	if err != nil {
		return nil, err
	}
	e.Status = model.StatusPending
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	pattern := ""
	if p, ok := e.RecurrencePattern.Get(); ok {
		pattern = p.String()
	}
	appLog.Info("event submitted",
		"id", e.ID,
		"title", e.Title,
		"start_date", e.StartDate,
		"pattern", pattern,
	)
	return e, nil
}

// Edit replaces the content of event id with d, resolving the recurrence
// again from d.Date. Edited events go back to review.
func (s *Service) Edit(ctx context.Context, id string, d Draft) (*model.Event, error) {
	old, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := s.build(d)
	if err != nil {
		return nil, err
	}
	e.ID = old.ID
	e.CreatedAt = old.CreatedAt
	e.Status = model.StatusPending
	if err := s.store.Update(ctx, e); err != nil {
		return nil, err
	}
	appLog.Info("event edited", "id", e.ID, "start_date", e.StartDate, "previous_status", old.Status)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	appLog.Info("event deleted", "id", id)
	return nil
}

func (s *Service) build(d Draft) (*model.Event, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if d.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidEvent)
	}
	if d.StartTime != "" {
		if _, err := time.Parse("15:04", d.StartTime); err != nil {
			return nil, fmt.Errorf("%w: start time %q is not HH:MM", ErrInvalidEvent, d.StartTime)
		}
	}

	e := &model.Event{
		Title:       title,
		Description: strings.TrimSpace(d.Description),
		Venue:       strings.TrimSpace(d.Venue),
		StartDate:   d.Date,
		StartTime:   d.StartTime,
	}
	if d.Pattern == "" {
		return e, nil
	}

	p, err := recurrence.ParsePattern(d.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if !p.Persistable() && !s.opts.PersistFifth {
		return nil, fmt.Errorf("%w: %s is not a stored selector; choose last-%s", ErrInvalidEvent, p, recurrence.WeekdayName(p.Weekday))
	}
	start, err := recurrence.NextDateWithin(d.Date, p, s.opts.SearchMonths)
	if err != nil {
		return nil, err
	}
	if end, ok := d.EndDate.Get(); ok {
		if end.Before(d.Date) {
			return nil, fmt.Errorf("%w: end date %s is before %s", ErrInvalidEvent, end, d.Date)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: first %s is %s, after end date %s", ErrSeriesEnded, p, start, end)
		}
	}

	e.StartDate = start
	e.IsRecurring = true
	e.RecurrenceType = mo.Some(p.Type())
	e.RecurrencePattern = mo.Some(p)
	e.RecurrenceEndDate = d.EndDate
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.store.Get(ctx, id)
}

// List returns events in the given status, or all events when status is
// absent.
func (s *Service) List(ctx context.Context, status mo.Option[model.Status]) ([]*model.Event, error) {
	return s.store.List(ctx, store.ListFilter{Status: status})
}

func (s *Service) Approve(ctx context.Context, id string) (*model.Event, error) {
	return s.review(ctx, id, model.StatusApproved)
}

func (s *Service) Reject(ctx context.Context, id string) (*model.Event, error) {
	return s.review(ctx, id, model.StatusRejected)
}

func (s *Service) review(ctx context.Context, id string, status model.Status) (*model.Event, error) {
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	appLog.Info("event reviewed", "id", id, "status", status)
	return e, nil
}

// Options lists the recurrence choices for selected. existing is the
// pattern currently stored on the event being edited, if any.
func (s *Service) Options(selected recurrence.Date, existing string) []recurrence.Pattern {
	return OptionsFor(selected, existing)
}

// OptionsFor is Options without a service: a stored value that no longer
// parses is logged and dropped.
func OptionsFor(selected recurrence.Date, existing string) []recurrence.Pattern {
	legacy := mo.None[recurrence.Pattern]()
	if existing != "" {
		p, err := recurrence.ParsePattern(existing)
		if err != nil {
			appLog.Warn("ignoring unparseable stored pattern", "pattern", existing, "err", err)
		} else {
			legacy = mo.Some(p)
		}
	}
	return recurrence.AvailableOptions(selected, legacy)
}

// RollForward moves approved recurring events whose start date is before
// today onto their next occurrence. Series whose next occurrence falls after
// their end date are left alone. It returns how many events moved.
func (s *Service) RollForward(ctx context.Context, today recurrence.Date) (int, error) {
	stale, err := s.store.List(ctx, store.ListFilter{
		Status:        mo.Some(model.StatusApproved),
		RecurringOnly: true,
		StartBefore:   mo.Some(today),
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, e := range stale {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		p, ok := e.Series()
		if !ok {
			appLog.Warn("recurring event has no usable pattern", "id", e.ID)
			continue
		}
		next, err := recurrence.NextDateWithin(today, p, s.opts.SearchMonths)
		if err != nil {
			appLog.Error("rollover: resolving next date failed", err, "id", e.ID, "pattern", p)
			continue
		}
		if e.EndedBefore(next) {
			appLog.Debug("rollover: series ended", "id", e.ID, "next", next)
			continue
		}
		if err := s.store.SetStartDate(ctx, e.ID, next); err != nil {
			return moved, err
		}
		moved++
	}

	appLog.Info("rollover completed", "today", today, "candidates", len(stale), "moved", moved)
	return moved, nil
}

// Occurrences expands approved events into dated occurrences within the
// inclusive window [from, to].
func (s *Service) Occurrences(ctx context.Context, from, to recurrence.Date) (ExpandResult, error) {
	approved, err := s.store.List(ctx, store.ListFilter{Status: mo.Some(model.StatusApproved)})
	if err != nil {
		return ExpandResult{}, err
	}
	return ExpandOccurrences(approved, ExpandConfig{
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: s.opts.MaxOccurrencesPerEvent,
	})
}
