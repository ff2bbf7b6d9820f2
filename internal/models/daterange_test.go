package models

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthToDate(t *testing.T) {
	r := MonthToDate(time.Date(2025, 3, 17, 15, 4, 5, 0, time.UTC))

	if !r.Start.Equal(day(2025, 3, 1)) || !r.End.Equal(day(2025, 3, 17)) {
		t.Errorf("MonthToDate = %s", r)
	}
	if r.Days() != 17 {
		t.Errorf("Days() = %d, want 17", r.Days())
	}
}

func TestWeekToDate_StartsMonday(t *testing.T) {
	// 2025-03-16 is a Sunday.
	r := WeekToDate(time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC))
	if !r.Start.Equal(day(2025, 3, 10)) {
		t.Errorf("start = %s, want 2025-03-10", r.StartParam())
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ini     string
		fim     string
		want    string
		wantErr bool
	}{
		{"defaults", "", "", "2025-03-01..2025-03-17", false},
		{"explicit", "2025-02-01", "2025-02-28", "2025-02-01..2025-02-28", false},
		{"only ini", "2025-03-10", "", "2025-03-10..2025-03-17", false},
		{"only fim in earlier month", "", "2025-02-15", "2025-02-01..2025-02-15", false},
		{"only fim this month", "", "2025-03-05", "2025-03-01..2025-03-05", false},
		{"inverted", "2025-03-10", "2025-03-01", "", true},
		{"bad format", "10/03/2025", "", "", true},
		{"too long", "2023-01-01", "2025-01-01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.ini, tt.fim, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && r.String() != tt.want {
				t.Errorf("range = %s, want %s", r, tt.want)
			}
		})
	}
}

func TestDateRange_Previous(t *testing.T) {
	r := DateRange{Start: day(2025, 3, 1), End: day(2025, 3, 10)}
	prev := r.Previous()

	if prev.String() != "2025-02-19..2025-02-28" {
		t.Errorf("Previous() = %s", prev)
	}
	if prev.Days() != r.Days() {
		t.Errorf("previous length %d != %d", prev.Days(), r.Days())
	}
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{Start: day(2025, 3, 1), End: day(2025, 3, 2)}

	if !r.Contains(time.Date(2025, 3, 2, 23, 59, 0, 0, time.UTC)) {
		t.Error("last day evening should be inside the range")
	}
	if r.Contains(day(2025, 3, 3)) {
		t.Error("day after the range should be outside")
	}
}

func TestView(t *testing.T) {
	if !ViewFuel.HasGoals() || !ViewStore.HasGoals() || ViewOverview.HasGoals() {
		t.Error("only fuel and store views carry goals")
	}
	if View("settings").Valid() {
		t.Error("settings is not a dashboard view")
	}
}
