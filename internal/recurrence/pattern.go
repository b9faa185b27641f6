package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPattern wraps every pattern parse failure.
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	// ErrInvalidSelector is returned for an unknown occurrence selector.
	ErrInvalidSelector = errors.New("invalid occurrence selector")
	// ErrInvalidWeekday is returned for an unknown weekday name.
	ErrInvalidWeekday = errors.New("invalid weekday")
)

// Selector picks which occurrence(s) of a weekday a pattern refers to.
type Selector int

const (
	Every Selector = iota
	First
	Second
	Third
	Fourth
	Fifth
	Last
)

var selectorNames = [...]string{
	Every:  "every",
	First:  "first",
	Second: "second",
	Third:  "third",
	Fourth: "fourth",
	Fifth:  "fifth",
	Last:   "last",
}

// ParseSelector maps the lowercase selector name to a Selector.
func ParseSelector(s string) (Selector, error) {
	for i, name := range selectorNames {
		if s == name {
			return Selector(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
}

func (s Selector) String() string {
	if s < Every || s > Last {
		return fmt.Sprintf("Selector(%d)", int(s))
	}
	return selectorNames[s]
}

// Ordinal returns 1..5 for First..Fifth and 0 for Every and Last.
func (s Selector) Ordinal() int {
	if s >= First && s <= Fifth {
		return int(s)
	}
	return 0
}

// selectorForOrdinal is the inverse of Ordinal for 1..5.
func selectorForOrdinal(n int) (Selector, bool) {
	if n < 1 || n > 5 {
		return 0, false
	}
	return Selector(n), true
}

func (s Selector) valid() bool {
	return s >= Every && s <= Last
}

var weekdayNames = [...]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// ParseWeekday maps a lowercase English weekday name to time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	for i, name := range weekdayNames {
		if s == name {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// WeekdayName returns the lowercase name used in pattern strings.
func WeekdayName(wd time.Weekday) string {
	if wd < time.Sunday || wd > time.Saturday {
		return ""
	}
	return weekdayNames[wd]
}

// Pattern is a parsed recurrence rule such as "first-friday".
type Pattern struct {
	Selector Selector
	Weekday  time.Weekday
}

// ParsePattern parses "<selector>-<weekday>". This is the only place pattern
// strings are split; everything downstream works on the typed value.
func ParsePattern(s string) (Pattern, error) {
	sel, day, ok := strings.Cut(s, "-")
	if !ok || sel == "" || day == "" {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
	selector, err := ParseSelector(sel)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	weekday, err := ParseWeekday(day)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return Pattern{Selector: selector, Weekday: weekday}, nil
}

// MustParsePattern is ParsePattern for literals; it panics on bad input.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.Selector.String() + "-" + WeekdayName(p.Weekday)
}

// Valid reports whether both halves of the pattern are in range.
func (p Pattern) Valid() bool {
	return p.Selector.valid() && p.Weekday >= time.Sunday && p.Weekday <= time.Saturday
}

// IsWeekly reports whether the pattern produces a weekly series.
func (p Pattern) IsWeekly() bool {
	return p.Selector == Every
}

// Type returns the recurrence type implied by the pattern.
func (p Pattern) Type() Type {
	if !p.Valid() {
		return Unknown
	}
	if p.IsWeekly() {
		return Weekly
	}
	return Monthly
}

// Persistable reports whether the selector belongs to the vocabulary stored
// on events: every, first..fourth and last. Fifth is computable but not part
// of it.
func (p Pattern) Persistable() bool {
	return p.Valid() && p.Selector != Fifth
}

func (p Pattern) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d/%d", ErrInvalidPattern, p.Selector, p.Weekday)
	}
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(b []byte) error {
	parsed, err := ParsePattern(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type is the coarse classification stored next to a pattern.
type Type string

const (
	// Unknown marks an unset or unparseable pattern. Callers must not treat
	// it as either Weekly or Monthly.
	Unknown Type = ""
	Weekly  Type = "weekly"
	Monthly Type = "monthly"
)

// ParseType accepts the persisted type strings.
func ParseType(s string) Type {
	switch Type(s) {
	case Weekly, Monthly:
		return Type(s)
	default:
		return Unknown
	}
}

// TypeFromPattern classifies a raw pattern string. Anything that does not
// parse is Unknown.
func TypeFromPattern(s string) Type {
	p, err := ParsePattern(s)
	if err != nil {
		return Unknown
	}
	return p.Type()
}
