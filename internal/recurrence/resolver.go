package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// MaxMonthAdvances bounds how many months NextDateForPattern will move past
// fromDate's month while looking for a monthly occurrence.
const MaxMonthAdvances = 12

// ErrUnresolvable means no occurrence was found within the search bound. It is
// distinct from a month simply lacking an Nth weekday, which is handled
// internally by moving on to the next month.
var ErrUnresolvable = errors.New("recurrence could not be resolved within bound")

// FindNthWeekdayOfMonth returns the selected occurrence of wd in the given
// month. The bool is false when the month has fewer than N occurrences of
// the weekday, and also for Every (which has no single occurrence) or for
// out-of-range arguments.
func FindNthWeekdayOfMonth(year int, month time.Month, sel Selector, wd time.Weekday) (Date, bool) {
	if sel == Every || !sel.valid() || month < time.January || month > time.December ||
		wd < time.Sunday || wd > time.Saturday {
		return Date{}, false
	}

	matches := make([]Date, 0, 5)
	for day := 1; day <= daysIn(year, month); day++ {
		d := Date{Year: year, Month: month, Day: day}
		if d.Weekday() == wd {
			matches = append(matches, d)
		}
	}

	if sel == Last {
		return matches[len(matches)-1], true
	}
	n := sel.Ordinal()
	if n > len(matches) {
		return Date{}, false
	}
	return matches[n-1], true
}

// NextDateForPattern returns the first date on or after from that matches p.
// Weekly patterns return from itself when it already falls on the weekday.
// Monthly patterns search from's month and then up to MaxMonthAdvances
// following months before giving up with ErrUnresolvable.
func NextDateForPattern(from Date, p Pattern) (Date, error) {
	return NextDateWithin(from, p, MaxMonthAdvances)
}

// NextDateWithin is NextDateForPattern with an explicit month bound. A bound
// below zero is treated as zero (only from's own month is searched).
func NextDateWithin(from Date, p Pattern, months int) (Date, error) {
	if !p.Valid() {
		return Date{}, fmt.Errorf("%w: %d/%d", ErrInvalidPattern, p.Selector, p.Weekday)
	}

	if p.IsWeekly() {
		delta := (int(p.Weekday) - int(from.Weekday()) + 7) % 7
		return from.AddDays(delta), nil
	}

	if months < 0 {
		months = 0
	}
	month := from.FirstOfMonth()
	for i := 0; i <= months; i++ {
		if d, ok := FindNthWeekdayOfMonth(month.Year, month.Month, p.Selector, p.Weekday); ok && !d.Before(from) {
			return d, nil
		}
		month = month.AddMonths(1)
	}
	return Date{}, fmt.Errorf("%w: %s from %s after %d months", ErrUnresolvable, p, from, months)
}

// Resolve parses pattern and resolves it against from. Malformed patterns
// yield an error wrapping ErrInvalidPattern.
func Resolve(from Date, pattern string) (Date, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return Date{}, err
	}
	return NextDateForPattern(from, p)
}

// AvailableOptions lists the patterns that describe selected: the weekly
// pattern, its ordinal within the month, "last" when no later occurrence of
// the weekday fits in the month, and finally existing when it is set and not
// already listed. The order is stable: every, ordinal, last, existing.
func AvailableOptions(selected Date, existing mo.Option[Pattern]) []Pattern {
	wd := selected.Weekday()
	options := make([]Pattern, 0, 4)
	options = append(options, Pattern{Selector: Every, Weekday: wd})

	count := 0
	for day := 1; day <= selected.Day; day++ {
		if (Date{Year: selected.Year, Month: selected.Month, Day: day}).Weekday() == wd {
			count++
		}
	}
	if sel, ok := selectorForOrdinal(count); ok {
		options = append(options, Pattern{Selector: sel, Weekday: wd})
	}

	if selected.Day+7 > selected.DaysInMonth() {
		options = append(options, Pattern{Selector: Last, Weekday: wd})
	}

	if legacy, ok := existing.Get(); ok && legacy.Valid() && !containsPattern(options, legacy) {
		options = append(options, legacy)
	}
	return options
}

func containsPattern(list []Pattern, p Pattern) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}
