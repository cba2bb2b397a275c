package model

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate validates an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Weekday returns the weekday (0=Sunday .. 6=Saturday) of an ISO date,
// or -1 if the date is malformed.
func Weekday(date string) int {
	t, err := ParseDate(date)
	if err != nil {
		return -1
	}
	return int(t.Weekday())
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock converts minutes from midnight to "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// MonthBounds returns the first day of now's calendar month and the first day
// of the next month, as ISO dates. Used for the free-tier monthly quota:
// monthStart <= appointment_date < monthEnd.
func MonthBounds(now time.Time) (monthStart, monthEnd string) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return FormatDate(start), FormatDate(start.AddDate(0, 1, 0))
}
