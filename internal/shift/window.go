package shift

import (
	"fmt"
	"strings"
	"time"
)

var clockLayouts = []string{"15:04:05", "15:04"}

func parseClock(v string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid wall-clock time %q", v)
}

// Window resolves the shift's scheduled start and end in loc. An end time at
// or before the start time belongs to the next calendar day (night shifts).
func (s Shift) Window(loc *time.Location) (start, end time.Time, err error) {
	if s.Date.IsZero() || s.StartTime == "" || s.EndTime == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("shift %s has no schedule", s.ID)
	}
	if loc == nil {
		loc = time.UTC
	}

	st, err := parseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	et, err := parseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, m, d := s.Date.Date()
	start = time.Date(y, m, d, st.Hour(), st.Minute(), st.Second(), 0, loc)
	endDay := d
	if !et.After(st) {
		endDay++
	}
	end = time.Date(y, m, endDay, et.Hour(), et.Minute(), et.Second(), 0, loc)
	return start, end, nil
}

func (s Shift) DurationHours(loc *time.Location) (float64, error) {
	start, end, err := s.Window(loc)
	if err != nil {
		return 0, err
	}
	return end.Sub(start).Hours(), nil
}

// ShortID is the upper-cased id prefix used in operator-facing titles.
func (s Shift) ShortID() string {
	return strings.ToUpper(s.ID.String()[:8])
}
