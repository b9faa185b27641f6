// Package recurrence resolves recurring-event patterns such as
// "every-monday", "first-friday" or "last-sunday" into concrete calendar
// dates.
//
// Pattern strings are parsed once, at the boundary, into a Pattern value
// (an occurrence Selector plus a time.Weekday). Every function in the
// package is pure: the reference date is always an argument, nothing reads
// the clock, and results are safe to memoize or share between goroutines.
//
// Monthly resolution walks forward month by month and stops after
// MaxMonthAdvances months with ErrUnresolvable, so no input can loop
// forever. A month that simply lacks the requested occurrence (a fifth
// Monday in February, say) is not an error; FindNthWeekdayOfMonth reports it
// with a false bool and the resolver moves on.
package recurrence
