package recurrence

import "time"

// OccurrencesInMonth lists every date in the month matched by p: all the
// weekday's dates for weekly patterns, at most one date for monthly ones.
func OccurrencesInMonth(year int, month time.Month, p Pattern) []Date {
	if !p.Valid() || month < time.January || month > time.December {
		return nil
	}
	if !p.IsWeekly() {
		if d, ok := FindNthWeekdayOfMonth(year, month, p.Selector, p.Weekday); ok {
			return []Date{d}
		}
		return nil
	}

	first := Date{Year: year, Month: month, Day: 1}
	d, err := NextDateForPattern(first, p)
	if err != nil {
		return nil
	}
	out := make([]Date, 0, 5)
	for ; d.Month == month && d.Year == year; d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

// Occurrences enumerates dates matched by p in the inclusive window
// [from, to]. At most limit dates are returned; truncated reports whether the
// window held more. A non-positive limit means no cap.
func Occurrences(p Pattern, from, to Date, limit int) (dates []Date, truncated bool) {
	if !p.Valid() || to.Before(from) {
		return nil, false
	}

	add := func(d Date) bool {
		if limit > 0 && len(dates) >= limit {
			truncated = true
			return false
		}
		dates = append(dates, d)
		return true
	}

	if p.IsWeekly() {
		d, err := NextDateForPattern(from, p)
		if err != nil {
			return nil, false
		}
		for ; !d.After(to); d = d.AddDays(7) {
			if !add(d) {
				break
			}
		}
		return dates, truncated
	}

	for month := from.FirstOfMonth(); !month.After(to); month = month.AddMonths(1) {
		d, ok := FindNthWeekdayOfMonth(month.Year, month.Month, p.Selector, p.Weekday)
		if !ok || d.Before(from) || d.After(to) {
			continue
		}
		if !add(d) {
			break
		}
	}
	return dates, truncated
}
