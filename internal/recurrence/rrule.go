package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// rruleWeekdays is indexed by time.Weekday.
var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// rruleOption builds the RFC 5545 equivalent of p. Weekly patterns become
// FREQ=WEEKLY;BYDAY=XX, monthly ones FREQ=MONTHLY;BYDAY=nXX with n=-1 for
// Last.
func rruleOption(p Pattern, start Date, until mo.Option[Date]) (rrule.ROption, error) {
	if !p.Valid() {
		return rrule.ROption{}, fmt.Errorf("%w: %d/%d", ErrInvalidPattern, p.Selector, p.Weekday)
	}

	opt := rrule.ROption{
		Dtstart: start.Time(time.UTC),
		Wkst:    rrule.MO,
	}
	wd := rruleWeekdays[p.Weekday]
	switch {
	case p.IsWeekly():
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{wd}
	case p.Selector == Last:
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{wd.Nth(-1)}
	default:
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{wd.Nth(p.Selector.Ordinal())}
	}
	if end, ok := until.Get(); ok {
		opt.Until = end.Time(time.UTC)
	}
	return opt, nil
}

// ToRRule returns an rrule-go rule equivalent to p starting at start and
// optionally bounded by until (inclusive).
func ToRRule(p Pattern, start Date, until mo.Option[Date]) (*rrule.RRule, error) {
	opt, err := rruleOption(p, start, until)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(opt)
}

// RRuleString renders p as the value of an RRULE property (without the
// "RRULE:" prefix and without DTSTART).
func RRuleString(p Pattern, until mo.Option[Date]) (string, error) {
	opt, err := rruleOption(p, Date{Year: 1970, Month: time.January, Day: 1}, until)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// PatternFromRRule maps an RRULE value back into the pattern vocabulary.
// Only single-weekday WEEKLY rules and single-weekday MONTHLY rules with an
// occurrence (BYDAY=2TH, BYDAY=-1SU, or BYDAY=TH;BYSETPOS=2) qualify.
// UNTIL is accepted and ignored here; any other rule part (COUNT, BYMONTH,
// BYMONTHDAY, ...) narrows the series and is reported as ErrInvalidPattern.
func PatternFromRRule(value string) (Pattern, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	if opt.Interval > 1 || len(opt.Byweekday) != 1 || hasExtraParts(opt) {
		return Pattern{}, fmt.Errorf("%w: rule %q is outside the pattern vocabulary", ErrInvalidPattern, value)
	}

	day := opt.Byweekday[0]
	if len(opt.Bysetpos) > 0 && (opt.Freq != rrule.MONTHLY || day.N() != 0) {
		return Pattern{}, fmt.Errorf("%w: rule %q uses BYSETPOS outside a plain monthly BYDAY", ErrInvalidPattern, value)
	}
	weekday := time.Weekday((day.Day() + 1) % 7)

	switch opt.Freq {
	case rrule.WEEKLY:
		if day.N() != 0 {
			break
		}
		return Pattern{Selector: Every, Weekday: weekday}, nil
	case rrule.MONTHLY:
		n := day.N()
		if n == 0 && len(opt.Bysetpos) == 1 {
			n = opt.Bysetpos[0]
		}
		if n == -1 {
			return Pattern{Selector: Last, Weekday: weekday}, nil
		}
		if sel, ok := selectorForOrdinal(n); ok {
			return Pattern{Selector: sel, Weekday: weekday}, nil
		}
	}
	return Pattern{}, fmt.Errorf("%w: rule %q is outside the pattern vocabulary", ErrInvalidPattern, value)
}

// hasExtraParts reports whether opt sets a rule part no pattern can express.
func hasExtraParts(opt *rrule.ROption) bool {
	return opt.Count > 0 ||
		len(opt.Bymonth) > 0 ||
		len(opt.Bymonthday) > 0 ||
		len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 ||
		len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 ||
		len(opt.Byeaster) > 0
}
