package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "pdxevents/internal/log"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

const (
	localTimestampFormat = "20060102T150405"
	utcTimestampFormat   = "20060102T150405Z"
	dateFormat           = "20060102"
)

// FeedOptions describes the published calendar.
type FeedOptions struct {
	Name      string
	ProductID string
	// Location is the zone in which event start times are wall-clock times.
	Location *time.Location
	// UIDDomain is appended to event IDs to form VEVENT UIDs.
	UIDDomain string
	// Now stamps DTSTAMP on every VEVENT.
	Now time.Time
}

// WriteFeed renders events as a VCALENDAR. Recurring events carry an RRULE
// equivalent to their pattern, bounded by UNTIL when they have an end date;
// events whose pattern cannot be rendered are skipped.
func WriteFeed(w io.Writer, evs []*model.Event, opts FeedOptions) error {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	if opts.ProductID != "" {
		cal.SetProductId(opts.ProductID)
	}
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(opts.Location.String())

	written := 0
	for _, e := range evs {
		if err := addEvent(cal, e, opts); err != nil {
			appLog.Error("ics export: skipping event", err, "id", e.ID)
			continue
		}
		written++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	appLog.Debug("ics export completed", "events", written)
	return nil
}

func addEvent(cal *ical.Calendar, e *model.Event, opts FeedOptions) error {
	allDay := e.StartTime == ""
	start := e.StartDate.Time(opts.Location)
	if !allDay {
		clock, err := time.Parse("15:04", e.StartTime)
		if err != nil {
			return fmt.Errorf("start time %q: %w", e.StartTime, err)
		}
		start = time.Date(start.Year(), start.Month(), start.Day(), clock.Hour(), clock.Minute(), 0, 0, opts.Location)
	}

	var rule string
	if p, ok := e.Series(); ok {
		var err error
		if rule, err = recurrence.RRuleString(p, mo.None[recurrence.Date]()); err != nil {
			return err
		}
		if end, ok := e.RecurrenceEndDate.Get(); ok {
			rule += ";UNTIL=" + untilValue(end, allDay, opts.Location)
		}
	}

	uid := e.ID
	if opts.UIDDomain != "" {
		uid += "@" + opts.UIDDomain
	}
	ve := cal.AddEvent(uid)
	ve.SetDtStampTime(opts.Now)
	ve.SetSummary(e.Title)
	if e.Venue != "" {
		ve.SetLocation(e.Venue)
	}
	if e.Description != "" {
		ve.SetDescription(e.Description)
	}

	if allDay {
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
	} else {
		// Wall-clock start in the feed's zone so BYDAY follows local weekdays.
		ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(localTimestampFormat),
			&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{opts.Location.String()}})
	}
	if rule != "" {
		ve.AddRrule(rule)
	}
	return nil
}

// untilValue formats the inclusive end date for UNTIL: a DATE for all-day
// series, otherwise the last second of the day in UTC.
func untilValue(end recurrence.Date, allDay bool, loc *time.Location) string {
	if allDay {
		return end.Time(time.UTC).Format(dateFormat)
	}
	last := end.AddDays(1).Time(loc).Add(-time.Second)
	return last.UTC().Format(utcTimestampFormat)
}
