package store

import (
	"github.com/samber/mo"

	"pdxevents/internal/recurrence"
)

// optionalType converts an optional recurrence type into a value suitable
// for SQLite storage: nil (SQL NULL) when absent.
func optionalType(o mo.Option[recurrence.Type]) any {
	t, ok := o.Get()
	if !ok || t == recurrence.Unknown {
		return nil
	}
	return string(t)
}

func optionalPattern(o mo.Option[recurrence.Pattern]) any {
	p, ok := o.Get()
	if !ok || !p.Valid() {
		return nil
	}
	return p.String()
}

func optionalDate(o mo.Option[recurrence.Date]) any {
	d, ok := o.Get()
	if !ok {
		return nil
	}
	return d.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
