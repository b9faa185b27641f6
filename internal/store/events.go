package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

// ErrNotFound is returned when no event matches the requested ID.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, title, description, venue, start_date, start_time, is_recurring,
	recurrence_type, recurrence_pattern, recurrence_end_date, status, created_at, updated_at`

// EventStore persists events in SQLite.
type EventStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewEventStore creates an EventStore over an opened database.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// ListFilter narrows List. Zero values mean "no constraint".
type ListFilter struct {
	Status        mo.Option[model.Status]
	RecurringOnly bool

	// StartBefore keeps events whose start_date is strictly earlier.
	StartBefore mo.Option[recurrence.Date]

	// StartFrom keeps events whose start_date is on or after the date.
	StartFrom mo.Option[recurrence.Date]

	Limit int
}

// Create inserts e, assigning an ID and timestamps when they are unset.
func (s *EventStore) Create(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = model.StatusPending
	}
	now := s.now().UTC().Truncate(time.Second)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Title,
		e.Description,
		e.Venue,
		e.StartDate.String(),
		e.StartTime,
		boolToInt(e.IsRecurring),
		optionalType(e.RecurrenceType),
		optionalPattern(e.RecurrencePattern),
		optionalDate(e.RecurrenceEndDate),
		string(e.Status),
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of e.
func (s *EventStore) Update(ctx context.Context, e *model.Event) error {
	e.UpdatedAt = s.now().UTC().Truncate(time.Second)

	query := `UPDATE events SET title = ?, description = ?, venue = ?, start_date = ?, start_time = ?,
		is_recurring = ?, recurrence_type = ?, recurrence_pattern = ?, recurrence_end_date = ?,
		status = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		e.Title,
		e.Description,
		e.Venue,
		e.StartDate.String(),
		e.StartTime,
		boolToInt(e.IsRecurring),
		optionalType(e.RecurrenceType),
		optionalPattern(e.RecurrencePattern),
		optionalDate(e.RecurrenceEndDate),
		string(e.Status),
		e.UpdatedAt.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	return expectOneRow(res, e.ID)
}

// SetStatus changes only the review status.
func (s *EventStore) SetStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	return expectOneRow(res, id)
}

// SetStartDate moves an event to a new start date.
func (s *EventStore) SetStartDate(ctx context.Context, id string, d recurrence.Date) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET start_date = ?, updated_at = ? WHERE id = ?`,
		d.String(), s.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating event start date: %w", err)
	}
	return expectOneRow(res, id)
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return expectOneRow(res, id)
}

func (s *EventStore) Get(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// List returns events matching f ordered by start date, then title.
func (s *EventStore) List(ctx context.Context, f ListFilter) ([]*model.Event, error) {
	var (
		where []string
		args  []any
	)
	if status, ok := f.Status.Get(); ok {
		where = append(where, "status = ?")
		args = append(args, string(status))
	}
	if f.RecurringOnly {
		where = append(where, "is_recurring = 1")
	}
	if d, ok := f.StartBefore.Get(); ok {
		where = append(where, "start_date < ?")
		args = append(args, d.String())
	}
	if d, ok := f.StartFrom.Get(); ok {
		where = append(where, "start_date >= ?")
		args = append(args, d.String())
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, title"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e                    model.Event
		startDate, status    string
		createdAt, updatedAt string
		isRecurring          int
		recType, recPattern  sql.NullString
		recEndDate           sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Venue, &startDate, &e.StartTime, &isRecurring,
		&recType, &recPattern, &recEndDate, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	if e.StartDate, err = recurrence.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("event %s start_date: %w", e.ID, err)
	}
	e.IsRecurring = isRecurring != 0
	e.Status = model.Status(status)

	if recType.Valid {
		if t := recurrence.ParseType(recType.String); t != recurrence.Unknown {
			e.RecurrenceType = mo.Some(t)
		}
	}
	if recPattern.Valid {
		// Stored patterns were validated on write; a value that no longer
		// parses is surfaced as absent rather than failing the whole read.
		if p, perr := recurrence.ParsePattern(recPattern.String); perr == nil {
			e.RecurrencePattern = mo.Some(p)
		}
	}
	if recEndDate.Valid {
		if d, derr := recurrence.ParseDate(recEndDate.String); derr == nil {
			e.RecurrenceEndDate = mo.Some(d)
		}
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("event %s created_at: %w", e.ID, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("event %s updated_at: %w", e.ID, err)
	}
	return &e, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
