package models

import (
	"fmt"
	"time"
)

const (
	DateLayout   = "2006-01-02"
	maxRangeDays = 366
)

// DateRange is an inclusive day range in the station's local time.
type DateRange struct {
	Start time.Time `json:"ini"`
	End   time.Time `json:"fim"`
}

// MonthToDate is the default dashboard range: first day of now's month
// through now's day.
func MonthToDate(now time.Time) DateRange {
	today := truncateDay(now)
	return DateRange{
		Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()),
		End:   today,
	}
}

func SingleDay(day time.Time) DateRange {
	d := truncateDay(day)
	return DateRange{Start: d, End: d}
}

// WeekToDate starts on Monday.
func WeekToDate(now time.Time) DateRange {
	today := truncateDay(now)
	offset := (int(today.Weekday()) + 6) % 7
	return DateRange{Start: today.AddDate(0, 0, -offset), End: today}
}

// ParseDateRange reads ini/fim query values. Empty values fall back to
// MonthToDate(now), except that a lone fim starts on the first of its own
// month.
func ParseDateRange(ini, fim string, now time.Time) (DateRange, error) {
	r := MonthToDate(now)
	loc := now.Location()

	if ini != "" {
		t, err := time.ParseInLocation(DateLayout, ini, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid ini date %q: %w", ini, err)
		}
		r.Start = t
	}
	if fim != "" {
		t, err := time.ParseInLocation(DateLayout, fim, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid fim date %q: %w", fim, err)
		}
		r.End = t
		if ini == "" {
			r.Start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		}
	}

	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("fim %s is before ini %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	if r.Days() > maxRangeDays {
		return fmt.Errorf("range of %d days exceeds %d", r.Days(), maxRangeDays)
	}
	return nil
}

// Days counts the days in the range, both ends included.
func (r DateRange) Days() int {
	return int(truncateDay(r.End).Sub(truncateDay(r.Start)).Hours()/24+0.5) + 1
}

func (r DateRange) SingleDay() bool {
	return r.Days() == 1
}

// Previous is the range of equal length that ends the day before r starts.
func (r DateRange) Previous() DateRange {
	n := r.Days()
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t.In(r.Start.Location()))
	return !day.Before(truncateDay(r.Start)) && !day.After(truncateDay(r.End))
}

func (r DateRange) StartParam() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndParam() string   { return r.End.Format(DateLayout) }

func (r DateRange) String() string {
	return r.StartParam() + ".." + r.EndParam()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
