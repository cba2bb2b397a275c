package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9:00", 0, true},
		{"0900", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(540); got != "09:00" {
		t.Fatalf("FormatClock(540) = %q", got)
	}
	if got := FormatClock(1019); got != "16:59" {
		t.Fatalf("FormatClock(1019) = %q", got)
	}
}

func TestWeekday(t *testing.T) {
	if got := Weekday("2026-02-01"); got != 0 { // Sunday
		t.Fatalf("Weekday(2026-02-01) = %d, want 0", got)
	}
	if got := Weekday("2026-02-02"); got != 1 { // Monday
		t.Fatalf("Weekday(2026-02-02) = %d, want 1", got)
	}
	if got := Weekday("not-a-date"); got != -1 {
		t.Fatalf("Weekday(malformed) = %d, want -1", got)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	if start != "2026-01-01" || end != "2026-02-01" {
		t.Fatalf("MonthBounds = %s, %s", start, end)
	}
	// Year rollover.
	start, end = MonthBounds(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	if start != "2025-12-01" || end != "2026-01-01" {
		t.Fatalf("MonthBounds = %s, %s", start, end)
	}
}
