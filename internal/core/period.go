package core

import "time"

// Period is an inclusive [Start, End] window of instants.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// DaysInMonth returns the number of days in the month containing Start.
func (p Period) DaysInMonth() int {
	y, m, _ := p.Start.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, p.Start.Location()).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayPeriod covers the calendar day of t in t's location.
func DayPeriod(t time.Time) Period {
	start := startOfDay(t)
	return Period{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// WeekPeriod covers the Monday-based week containing t.
func WeekPeriod(t time.Time) Period {
	start := startOfDay(t)
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Nanosecond)}
}

// MonthPeriod covers the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	y, m, _ := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// YearPeriod covers the calendar year containing t.
func YearPeriod(t time.Time) Period {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}

// StartOfNextMonth returns the first instant of the month after t.
func StartOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}
