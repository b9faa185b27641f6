package recurrence

import (
	"fmt"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allSelectors = []Selector{Every, First, Second, Third, Fourth, Fifth, Last}

func allPatterns() []Pattern {
	out := make([]Pattern, 0, len(allSelectors)*7)
	for _, sel := range allSelectors {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			out = append(out, Pattern{Selector: sel, Weekday: wd})
		}
	}
	return out
}

func TestFindNthWeekdayOfMonth(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		month  time.Month
		sel    Selector
		wd     time.Weekday
		want   Date
		wantOK bool
	}{
		{"fourth monday leap february", 2024, time.February, Fourth, time.Monday, NewDate(2024, time.February, 26), true},
		{"fifth monday leap february", 2024, time.February, Fifth, time.Monday, Date{}, false},
		{"last monday leap february", 2024, time.February, Last, time.Monday, NewDate(2024, time.February, 26), true},
		{"fifth thursday leap february", 2024, time.February, Fifth, time.Thursday, NewDate(2024, time.February, 29), true},
		{"first monday", 2024, time.January, First, time.Monday, NewDate(2024, time.January, 1), true},
		{"last monday of 28-day february", 2021, time.February, Last, time.Monday, NewDate(2021, time.February, 22), true},
		{"last monday 2023 february", 2023, time.February, Last, time.Monday, NewDate(2023, time.February, 27), true},
		{"fifth monday of january", 2024, time.January, Fifth, time.Monday, NewDate(2024, time.January, 29), true},
		{"every is not a single occurrence", 2024, time.January, Every, time.Monday, Date{}, false},
		{"month out of range", 2024, time.Month(13), First, time.Monday, Date{}, false},
		{"weekday out of range", 2024, time.January, First, time.Weekday(7), Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindNthWeekdayOfMonth(tt.year, tt.month, tt.sel, tt.wd)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)

			again, okAgain := FindNthWeekdayOfMonth(tt.year, tt.month, tt.sel, tt.wd)
			assert.Equal(t, ok, okAgain)
			assert.Equal(t, got, again)
		})
	}
}

func TestFindNthWeekdayOfMonth_ResultsStayInMonth(t *testing.T) {
	for year := 2023; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			for _, p := range allPatterns() {
				if p.IsWeekly() {
					continue
				}
				d, ok := FindNthWeekdayOfMonth(year, month, p.Selector, p.Weekday)
				if !ok {
					require.Equal(t, Fifth, p.Selector, "only fifth may be missing: %s %d-%d", p, year, month)
					continue
				}
				require.Equal(t, year, d.Year)
				require.Equal(t, month, d.Month)
				require.Equal(t, p.Weekday, d.Weekday())
			}
		}
	}
}

func TestNextDateForPattern(t *testing.T) {
	tests := []struct {
		name    string
		from    Date
		pattern string
		want    Date
	}{
		{"weekly same day", NewDate(2024, time.January, 1), "every-monday", NewDate(2024, time.January, 1)},
		{"weekly next day", NewDate(2024, time.January, 1), "every-tuesday", NewDate(2024, time.January, 2)},
		{"weekly six days", NewDate(2024, time.January, 1), "every-sunday", NewDate(2024, time.January, 7)},
		{"weekly across year", NewDate(2024, time.December, 31), "every-saturday", NewDate(2025, time.January, 4)},
		{"monthly on from", NewDate(2024, time.January, 1), "first-monday", NewDate(2024, time.January, 1)},
		{"monthly passed this month", NewDate(2024, time.January, 10), "first-monday", NewDate(2024, time.February, 5)},
		{"monthly later this month", NewDate(2024, time.January, 10), "third-monday", NewDate(2024, time.January, 15)},
		{"last passed this month", NewDate(2024, time.January, 27), "last-friday", NewDate(2024, time.February, 23)},
		{"last leap day", NewDate(2024, time.February, 1), "last-thursday", NewDate(2024, time.February, 29)},
		{"fifth skips months", NewDate(2024, time.February, 1), "fifth-monday", NewDate(2024, time.April, 29)},
		{"monthly across year", NewDate(2024, time.December, 31), "first-wednesday", NewDate(2025, time.January, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.from, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDateWithin_Unresolvable(t *testing.T) {
	p := MustParsePattern("fifth-monday")

	// Neither February nor March 2024 has a fifth Monday.
	_, err := NextDateWithin(NewDate(2024, time.February, 1), p, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvable)

	got, err := NextDateWithin(NewDate(2024, time.February, 1), p, 2)
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.April, 29), got)

	_, err = NextDateWithin(NewDate(2024, time.February, 1), p, -3)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolve_InvalidPattern(t *testing.T) {
	_, err := Resolve(NewDate(2024, time.January, 1), "banana")
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NextDateForPattern(NewDate(2024, time.January, 1), Pattern{Selector: Selector(99), Weekday: time.Monday})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

// Every pattern must resolve from every day of a multi-year span that
// includes a leap year, inside the weekly and monthly bounds.
func TestNextDateForPattern_Termination(t *testing.T) {
	start := NewDate(2023, time.January, 1)
	end := NewDate(2027, time.December, 31)

	for from := start; !from.After(end); from = from.AddDays(1) {
		for _, p := range allPatterns() {
			got, err := NextDateForPattern(from, p)
			require.NoError(t, err, "%s from %s", p, from)
			require.False(t, got.Before(from), "%s from %s gave %s", p, from, got)
			require.Equal(t, p.Weekday, got.Weekday())

			if p.IsWeekly() {
				require.LessOrEqual(t, from.DaysUntil(got), 6)
				if from.Weekday() == p.Weekday {
					require.Equal(t, from, got)
				}
				continue
			}
			months := (got.Year-from.Year)*12 + int(got.Month) - int(from.Month)
			require.LessOrEqual(t, months, MaxMonthAdvances)

			nth, ok := FindNthWeekdayOfMonth(got.Year, got.Month, p.Selector, p.Weekday)
			require.True(t, ok)
			require.Equal(t, nth, got)
		}
	}
}

func TestAvailableOptions(t *testing.T) {
	tests := []struct {
		name     string
		date     Date
		existing mo.Option[Pattern]
		want     []string
	}{
		{
			name: "first monday of january 2024",
			date: NewDate(2024, time.January, 1),
			want: []string{"every-monday", "first-monday"},
		},
		{
			name: "fourth but not last",
			date: NewDate(2024, time.January, 22),
			want: []string{"every-monday", "fourth-monday"},
		},
		{
			name: "fifth and last",
			date: NewDate(2024, time.January, 29),
			want: []string{"every-monday", "fifth-monday", "last-monday"},
		},
		{
			name: "fourth and last in leap february",
			date: NewDate(2024, time.February, 26),
			want: []string{"every-monday", "fourth-monday", "last-monday"},
		},
		{
			name:     "legacy pattern appended",
			date:     NewDate(2024, time.January, 1),
			existing: mo.Some(MustParsePattern("third-friday")),
			want:     []string{"every-monday", "first-monday", "third-friday"},
		},
		{
			name:     "legacy pattern already present",
			date:     NewDate(2024, time.January, 1),
			existing: mo.Some(MustParsePattern("first-monday")),
			want:     []string{"every-monday", "first-monday"},
		},
		{
			name:     "invalid legacy pattern ignored",
			date:     NewDate(2024, time.January, 1),
			existing: mo.Some(Pattern{Selector: Selector(11)}),
			want:     []string{"every-monday", "first-monday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AvailableOptions(tt.date, tt.existing)
			names := make([]string, len(got))
			for i, p := range got {
				names[i] = p.String()
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestAvailableOptions_LegacyAlwaysKept(t *testing.T) {
	legacy := MustParsePattern("third-friday")
	for d := NewDate(2024, time.January, 1); d.Year == 2024; d = d.AddDays(1) {
		got := AvailableOptions(d, mo.Some(legacy))
		assert.Contains(t, got, legacy, d.String())
	}
}

func TestAvailableOptions_RoundTrip(t *testing.T) {
	for d := NewDate(2024, time.January, 1); d.Year < 2026; d = d.AddDays(1) {
		for _, p := range AvailableOptions(d, mo.None[Pattern]()) {
			require.NotEqual(t, Unknown, TypeFromPattern(p.String()), "%s on %s", p, d)

			parsed, err := ParsePattern(p.String())
			require.NoError(t, err)
			require.Equal(t, p, parsed)

			// Every offered pattern must describe the selected date itself.
			next, err := NextDateForPattern(d, p)
			require.NoError(t, err)
			require.Equal(t, d, next, "%s on %s", p, d)
		}
	}
}

func TestOccurrencesInMonth(t *testing.T) {
	got := OccurrencesInMonth(2024, time.January, MustParsePattern("every-monday"))
	assert.Equal(t, []Date{
		NewDate(2024, time.January, 1),
		NewDate(2024, time.January, 8),
		NewDate(2024, time.January, 15),
		NewDate(2024, time.January, 22),
		NewDate(2024, time.January, 29),
	}, got)

	assert.Equal(t, []Date{NewDate(2024, time.February, 26)},
		OccurrencesInMonth(2024, time.February, MustParsePattern("last-monday")))
	assert.Empty(t, OccurrencesInMonth(2024, time.February, MustParsePattern("fifth-monday")))
}

func TestOccurrences(t *testing.T) {
	from := NewDate(2024, time.January, 10)
	to := NewDate(2024, time.April, 30)

	monthly, truncated := Occurrences(MustParsePattern("first-monday"), from, to, 0)
	assert.False(t, truncated)
	assert.Equal(t, []Date{
		NewDate(2024, time.February, 5),
		NewDate(2024, time.March, 4),
		NewDate(2024, time.April, 1),
	}, monthly)

	weekly, truncated := Occurrences(MustParsePattern("every-wednesday"), from, to, 3)
	assert.True(t, truncated)
	assert.Equal(t, []Date{
		NewDate(2024, time.January, 10),
		NewDate(2024, time.January, 17),
		NewDate(2024, time.January, 24),
	}, weekly)

	fifth, _ := Occurrences(MustParsePattern("fifth-monday"), from, to, 0)
	assert.Equal(t, []Date{NewDate(2024, time.January, 29), NewDate(2024, time.April, 29)}, fifth)

	none, truncated := Occurrences(MustParsePattern("every-monday"), to, from, 0)
	assert.Empty(t, none)
	assert.False(t, truncated)
}

func ExampleNextDateForPattern() {
	from := NewDate(2024, time.January, 10)
	next, err := NextDateForPattern(from, MustParsePattern("first-monday"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(next)
	// Output: 2024-02-05
}
