// Package period models calendar months and the fixed date window a run covers
package period

import (
	"fmt"
	"time"
)

// Month is a calendar month, always interpreted in UTC
type Month struct {
	Year  int
	Month time.Month
}

// Of returns the month containing t
func Of(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the month
func (m Month) Start() time.Time { return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC) }

// End is the first instant of the following month (exclusive bound)
func (m Month) End() time.Time { return m.Start().AddDate(0, 1, 0) }

// Next returns the following month
func (m Month) Next() Month { return Of(m.End()) }

// Before reports whether m sorts strictly before o
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// String renders YYYY-MM
func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Window is a closed date range [Start, End]
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is the observation window used when none is configured
var DefaultWindow = Window{
	Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
}

// Validate rejects zero or inverted windows
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("period: window bounds must be set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("period: window end %s before start %s", w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return nil
}

// Months lists every calendar month intersecting the window, ascending.
// partial months at either edge are included
func (w Window) Months() []Month {
	if w.Validate() != nil {
		return nil
	}
	last := Of(w.End)
	var out []Month
	for m := Of(w.Start); !last.Before(m); m = m.Next() {
		out = append(out, m)
	}
	return out
}

// Clip returns the part of month m that lies inside the window as a half-open [from, to) range
func (w Window) Clip(m Month) (from, to time.Time) {
	from, to = m.Start(), m.End()
	if w.Start.After(from) {
		from = w.Start.UTC()
	}
	// End is inclusive by day
	if end := w.End.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour); end.Before(to) {
		to = end
	}
	return from, to
}

// String renders start..end as dates
func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}
