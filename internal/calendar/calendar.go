// Package calendar builds month grids and places tasks on them.
package calendar

import (
	"time"

	"cloudtodo/internal/dates"
	"cloudtodo/internal/service"
)

// Day is one cell of a month grid.
type Day struct {
	Date           time.Time
	InCurrentMonth bool
	IsToday        bool
}

// GenerateDays returns the grid for month (0-11) of year: every date from
// the Sunday on or before the first of the month through the Saturday on or
// after its last day. The length is always a multiple of 7.
// IsToday is computed against today, date-only.
func GenerateDays(year, month int, today time.Time) []Day {
	loc := time.Local
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	ty, tm, td := today.In(loc).Date()
	days := make([]Day, 0, 42)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		y, m, dd := d.Date()
		days = append(days, Day{
			Date:           d,
			InCurrentMonth: m == first.Month(),
			IsToday:        y == ty && m == tm && dd == td,
		})
	}
	return days
}

// GenerateDaysNow is GenerateDays against the current time.
func GenerateDaysNow(year, month int) []Day {
	return GenerateDays(year, month, time.Now())
}

// Weeks splits a grid into rows of seven days.
func Weeks(days []Day) [][]Day {
	var rows [][]Day
	for i := 0; i+7 <= len(days); i += 7 {
		rows = append(rows, days[i:i+7])
	}
	return rows
}

// OnDay reports whether task spans day. Tasks missing either bound never
// appear on the calendar.
func OnDay(task service.Task, day time.Time) bool {
	start, ok := dates.Parse(task.StartDate)
	if !ok {
		return false
	}
	due, ok := dates.Parse(task.DueDate)
	if !ok {
		return false
	}
	d := dates.DateOnly(day.In(time.Local))
	return !d.Before(dates.DateOnly(start)) && !d.After(dates.DateOnly(due))
}

// TasksForDay returns the tasks whose [StartDate, DueDate] contains day,
// in input order.
func TasksForDay(tasks []service.Task, day time.Time) []service.Task {
	var out []service.Task
	for _, t := range tasks {
		if OnDay(t, day) {
			out = append(out, t)
		}
	}
	return out
}
