package utils

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire and storage format of a calendar day.
const DayLayout = "2006-01-02"

// Day truncates t to midnight UTC of the calendar date t shows in its own
// location.  A pickup on "2025-07-01T09:00:00+02:00" is the 1st of July,
// not the 30th of June, even though the instant is on the 1st in UTC too.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts either a bare YYYY-MM-DD date or an RFC3339 timestamp
// and returns the calendar day it denotes.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Day(t), nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string { return Day(t).Format(DayLayout) }

// EachDay lists every calendar day in [start, end).  An empty slice is
// returned when end is not after start.
func EachDay(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return []time.Time{}
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24))
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share at least
// one day.  Ranges that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// NightsBetween counts the days in [start, end).
func NightsBetween(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
