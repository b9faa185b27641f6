package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	"pdxevents/internal/events"
	appLog "pdxevents/internal/log"
	"pdxevents/internal/recurrence"
)

// ParseDrafts reads the VEVENTs of an iCalendar payload as event drafts.
//
//   - Date-times are converted into loc; all-day events keep their date and
//     get an empty start time.
//   - RRULEs inside the pattern vocabulary become patterns; any other rule is
//     kept verbatim with its "RRULE:" prefix so that staging rejects it.
//   - RECURRENCE-ID overrides and events without DTSTART are skipped.
func ParseDrafts(body []byte, loc *time.Location) ([]events.Draft, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	drafts := make([]events.Draft, 0)
	for _, ve := range cal.Events() {
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		if ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) != nil {
			appLog.Debug("ics: skipping recurrence override", "uid", uid)
			continue
		}
		d, perr := draftFromVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "uid", uid)
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Info("ics parse completed", "event_count", len(drafts))
	return drafts, nil
}

func draftFromVEvent(ve *ical.VEvent, loc *time.Location) (events.Draft, error) {
	d := events.Draft{
		Title:       propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Venue:       propValue(ve, ical.ComponentPropertyLocation),
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return d, errors.New("missing DTSTART")
	}
	start, allDay, err := parseICSTime(dtStart.Value, paramValue(dtStart, "TZID"), loc)
	if err != nil {
		return d, fmt.Errorf("DTSTART: %w", err)
	}
	d.Date = recurrence.DateOf(start)
	if !allDay {
		d.StartTime = start.Format("15:04")
	}

	rule := ve.GetProperty(ical.ComponentPropertyRrule)
	if rule == nil || rule.Value == "" {
		return d, nil
	}
	if p, err := recurrence.PatternFromRRule(rule.Value); err == nil {
		d.Pattern = p.String()
	} else {
		d.Pattern = "RRULE:" + rule.Value
	}
	if until, ok := ruleUntil(rule.Value, loc); ok {
		d.EndDate = mo.Some(until)
	}
	return d, nil
}

// ruleUntil extracts the UNTIL part of an RRULE value as a local date.
func ruleUntil(rule string, loc *time.Location) (recurrence.Date, bool) {
	for _, part := range strings.Split(rule, ";") {
		key, value, _ := strings.Cut(part, "=")
		if !strings.EqualFold(key, "UNTIL") {
			continue
		}
		t, _, err := parseICSTime(value, "", loc)
		if err != nil {
			return recurrence.Date{}, false
		}
		return recurrence.DateOf(t), true
	}
	return recurrence.Date{}, false
}

// parseICSTime parses a DATE or DATE-TIME value. UTC values and values with
// a TZID are converted into loc; floating values are read in loc. The bool
// reports a date-only value.
func parseICSTime(v, tzid string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t.In(loc), false, err
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		src := loc
		if tzid != "" {
			if tz, err := time.LoadLocation(tzid); err == nil {
				src = tz
			} else {
				appLog.Warn("ics: unknown TZID, using configured zone", "tzid", tzid)
			}
		}
		t, err := time.ParseInLocation("20060102T150405", v, src)
		return t.In(loc), false, err
	}

	// Date-only (all-day), e.g., 20250101
	t, err := time.ParseInLocation("20060102", v, loc)
	return t, true, err
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func paramValue(prop *ical.IANAProperty, name string) string {
	if vs, ok := prop.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
