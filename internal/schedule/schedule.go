// Package schedule implements time-of-day access windows. A door opened
// inside a configured window is an expected access; outside, the controller
// escalates.
package schedule

import (
	"fmt"
	"regexp"
	"time"
)

// Window is a [Start, End] interval within one day, both bounds inclusive.
// Times are zero-padded "HH:MM", so string comparison agrees with numeric
// comparison.
type Window struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate checks both bounds are well-formed HH:MM with End >= Start.
func (w Window) Validate() error {
	if !hhmmRe.MatchString(w.Start) {
		return fmt.Errorf("window start %q is not HH:MM", w.Start)
	}
	if !hhmmRe.MatchString(w.End) {
		return fmt.Errorf("window end %q is not HH:MM", w.End)
	}
	if w.End < w.Start {
		return fmt.Errorf("window end %q before start %q", w.End, w.Start)
	}
	return nil
}

// contains reports whether hhmm lies within the window, bounds inclusive.
func (w Window) contains(hhmm string) bool {
	return w.Start <= hhmm && hhmm <= w.End
}

// Schedule maps day types to their access windows. Window counts are
// arbitrary; an empty set means no access that day type.
type Schedule struct {
	Weekday []Window `json:"weekday" yaml:"weekday"`
	Weekend []Window `json:"weekend" yaml:"weekend"`
}

// Validate checks every window in the schedule.
func (s Schedule) Validate() error {
	for i, w := range s.Weekday {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("weekday window %d: %w", i, err)
		}
	}
	for i, w := range s.Weekend {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("weekend window %d: %w", i, err)
		}
	}
	return nil
}

// Contains reports whether now falls inside any window for its day type.
// Saturday and Sunday are weekend, everything else weekday.
func (s Schedule) Contains(now time.Time) bool {
	windows := s.Weekday
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		windows = s.Weekend
	}

	hhmm := now.Format("15:04")
	for _, w := range windows {
		if w.contains(hhmm) {
			return true
		}
	}
	return false
}

// Default returns the factory schedule: three windows per day type.
func Default() Schedule {
	return Schedule{
		Weekday: []Window{
			{Start: "08:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
			{Start: "18:00", End: "20:00"},
		},
		Weekend: []Window{
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "16:00"},
			{Start: "17:00", End: "19:00"},
		},
	}
}
