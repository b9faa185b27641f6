package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	"pdxevents/internal/events"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

type optionDTO struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
}

// optionsResponse is the JSON response shape for /api/recurrence/options.
type optionsResponse struct {
	Date    string      `json:"date"`
	Options []optionDTO `json:"options"`
}

type nextResponse struct {
	From    string `json:"from"`
	Pattern string `json:"pattern"`
	Date    string `json:"date"`
}

type nthResponse struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Selector string `json:"selector"`
	Weekday  string `json:"weekday"`
	Found    bool   `json:"found"`
	Date     string `json:"date,omitempty"`
}

type typeResponse struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
}

// typeName renders a recurrence type, spelling out the unknown case.
func typeName(t recurrence.Type) string {
	if t == recurrence.Unknown {
		return "unknown"
	}
	return string(t)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedEvents []string        `json:"truncated_events,omitempty"`
	RangeStart      string          `json:"range_start"`
	RangeEnd        string          `json:"range_end"`
	TimeZone        string          `json:"timezone"`
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	EventID     string `json:"event_id"`
	InstanceKey string `json:"instance_key"`
	Title       string `json:"title"`
	Venue       string `json:"venue,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
}

func newOccurrenceDTO(o model.Occurrence) occurrenceDTO {
	dto := occurrenceDTO{
		EventID:     o.EventID,
		InstanceKey: o.InstanceKey,
		Title:       o.Title,
		Venue:       o.Venue,
		Date:        o.Date.String(),
		StartTime:   o.StartTime,
	}
	if p, ok := o.Pattern.Get(); ok {
		dto.Pattern = p.String()
	}
	return dto
}

// eventDTO mirrors the stored event. Recurrence fields are null for one-off
// events.
type eventDTO struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Venue             string    `json:"venue,omitempty"`
	StartDate         string    `json:"start_date"`
	StartTime         string    `json:"start_time,omitempty"`
	IsRecurring       bool      `json:"is_recurring"`
	RecurrenceType    *string   `json:"recurrence_type"`
	RecurrencePattern *string   `json:"recurrence_pattern"`
	RecurrenceEndDate *string   `json:"recurrence_end_date"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newEventDTO(e *model.Event) eventDTO {
	dto := eventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Venue:       e.Venue,
		StartDate:   e.StartDate.String(),
		StartTime:   e.StartTime,
		IsRecurring: e.IsRecurring,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if t, ok := e.RecurrenceType.Get(); ok {
		v := string(t)
		dto.RecurrenceType = &v
	}
	if p, ok := e.RecurrencePattern.Get(); ok {
		v := p.String()
		dto.RecurrencePattern = &v
	}
	if d, ok := e.RecurrenceEndDate.Get(); ok {
		v := d.String()
		dto.RecurrenceEndDate = &v
	}
	return dto
}

// submitRequest is the JSON body of POST /api/events.
type submitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	Pattern     string `json:"pattern"`
	EndDate     string `json:"end_date"`
}

func (r submitRequest) draft() (events.Draft, error) {
	d := events.Draft{
		Title:       r.Title,
		Description: r.Description,
		Venue:       r.Venue,
		StartTime:   strings.TrimSpace(r.StartTime),
		Pattern:     strings.TrimSpace(r.Pattern),
	}

	date, err := recurrence.ParseDate(strings.TrimSpace(r.Date))
	if err != nil {
		return d, fmt.Errorf("date: %w", err)
	}
	d.Date = date

	if v := strings.TrimSpace(r.EndDate); v != "" {
		end, err := recurrence.ParseDate(v)
		if err != nil {
			return d, fmt.Errorf("end_date: %w", err)
		}
		d.EndDate = mo.Some(end)
	}
	return d, nil
}
