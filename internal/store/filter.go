package store

import (
	"fmt"
	"math"
	"strings"
	"time"

	"cloudtodo/internal/dates"
	"cloudtodo/internal/service"
)

// Filter selects tasks by completion.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter parses a filter name; the empty string means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("invalid filter: %s (want all, active or completed)", s)
	}
}

// Match reports whether t passes f. An unknown filter matches nothing.
func (f Filter) Match(t service.Task) bool {
	switch f {
	case FilterAll:
		return true
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return false
	}
}

// FilterTasks returns the tasks matching f in their original order.
// The input is never modified.
func FilterTasks(tasks []service.Task, f Filter) []service.Task {
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Stats summarizes a task list.
type Stats struct {
	Total     int
	Completed int
	Active    int

	// Overdue and Upcoming count active tasks only.
	Overdue  int
	Upcoming int

	// Percent is the completed share, rounded to a whole percent.
	Percent int
}

// Summarize computes Stats against today.
func Summarize(tasks []service.Task, today time.Time) Stats {
	var s Stats
	for _, t := range tasks {
		s.Total++
		if t.Completed {
			s.Completed++
			continue
		}
		s.Active++
		switch {
		case dates.IsOverdueOn(t.DueDate, today):
			s.Overdue++
		case dates.IsUpcomingOn(t.DueDate, today):
			s.Upcoming++
		}
	}
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}
