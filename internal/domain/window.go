package domain

import (
	"fmt"
	"time"
)

// UTC offsets in use around the world range from UTC-12:00 to UTC+14:00.
const (
	MinUTCOffsetMinutes = -12 * 60
	MaxUTCOffsetMinutes = 14 * 60
)

// TimeWindow is a half-open UTC instant range [Start, End) covering one
// local calendar day. It is created once per invocation and never mutated.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start. Exactly 24 hours for a single-day window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// InvalidDateError reports a date or offset that cannot form a valid window.
type InvalidDateError struct {
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date: %s", e.Reason)
}

// ResolveWindow converts a Gregorian calendar date plus a UTC offset in
// minutes into the UTC window covering that day in the user's locale:
// Start is local midnight converted to UTC, End is Start plus 24 hours.
func ResolveWindow(year int, month time.Month, day int, offsetMinutes int) (TimeWindow, error) {
	if offsetMinutes < MinUTCOffsetMinutes || offsetMinutes > MaxUTCOffsetMinutes {
		return TimeWindow{}, &InvalidDateError{
			Reason: fmt.Sprintf("utc offset %d minutes out of range [%d, %d]", offsetMinutes, MinUTCOffsetMinutes, MaxUTCOffsetMinutes),
		}
	}

	// time.Date normalizes out-of-range components (February 30th becomes
	// March 2nd), so round-trip the components to reject nonexistent dates.
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if start.Year() != year || start.Month() != month || start.Day() != day {
		return TimeWindow{}, &InvalidDateError{
			Reason: fmt.Sprintf("%04d/%02d/%02d is not a calendar date", year, int(month), day),
		}
	}

	start = start.Add(-time.Duration(offsetMinutes) * time.Minute)
	return TimeWindow{Start: start, End: start.Add(24 * time.Hour)}, nil
}
