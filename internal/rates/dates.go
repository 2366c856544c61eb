// Package rates implements price series resolution: tiered provider
// fallback, gap-filling, synthetic series generation, and best-effort live
// rate fetching. All prices are daily closes keyed by UTC calendar day.
package rates

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// DayStartMs truncates a time to UTC midnight, in milliseconds.
func DayStartMs(t time.Time) int64 {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return day.UnixMilli()
}

// ParseDate parses a "2006-01-02" string into UTC midnight milliseconds.
func ParseDate(s string) (int64, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// FormatDate renders a millisecond timestamp as its UTC calendar day.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// DaysBetween enumerates UTC midnights from start to end inclusive, in
// ascending order. Returns nil when start is after end.
func DaysBetween(start, end time.Time) []int64 {
	first := time.UnixMilli(DayStartMs(start)).UTC()
	last := time.UnixMilli(DayStartMs(end)).UTC()
	if first.After(last) {
		return nil
	}

	var days []int64
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.UnixMilli())
	}
	return days
}
