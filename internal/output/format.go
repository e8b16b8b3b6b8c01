// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cloudtodo/internal/calendar"
	"cloudtodo/internal/category"
	"cloudtodo/internal/dates"
	"cloudtodo/internal/service"
	"cloudtodo/internal/store"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "31"
	ansiYellow = "33"
	ansiDim    = "2"

	// barWidth is the number of cells in the stats progress bar.
	barWidth = 20
)

// Formatter renders tasks for a terminal. Color enables ANSI sequences.
type Formatter struct {
	Color bool
	Today time.Time
}

func (f Formatter) paint(code, s string) string {
	if !f.Color || code == "" {
		return s
	}
	return "\x1b[" + code + "m" + s + ansiReset
}

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TITLE}  #{CATEGORY}[  {START} ~][  due {DUE}][ (overdue|soon)]"
// The overdue and soon marks apply to active tasks only.
func (f Formatter) FormatTask(w io.Writer, num int, task service.Task) {
	check := "[ ]"
	if task.Completed {
		check = "[x]"
	}
	title := normalizeTitle(task.Text)
	if task.Completed {
		title = f.paint(ansiDim, title)
	}
	style := category.Lookup(task.Category)

	var b strings.Builder
	fmt.Fprintf(&b, "%4d  %s %s  %s", num, check, title, f.paint(style.ANSI, "#"+style.Label))
	if task.StartDate != "" {
		fmt.Fprintf(&b, "  %s ~", dates.FormatDate(task.StartDate))
	}
	if task.DueDate != "" {
		fmt.Fprintf(&b, "  due %s", dates.FormatDate(task.DueDate))
		if !task.Completed {
			switch {
			case dates.IsOverdueOn(task.DueDate, f.Today):
				b.WriteString(" " + f.paint(ansiRed, "(overdue)"))
			case dates.IsUpcomingOn(task.DueDate, f.Today):
				b.WriteString(" " + f.paint(ansiYellow, "(soon)"))
			}
		}
	}
	fmt.Fprintln(w, b.String())
}

// FormatCalendar renders a month grid followed by the tasks of each day of
// the month that has any.
// Cells are five columns wide: today is bracketed, days with tasks carry
// a "*", and days outside the month show a dot.
func (f Formatter) FormatCalendar(w io.Writer, year, month int, days []calendar.Day, tasks []service.Task) {
	fmt.Fprintf(w, "%04d-%02d\n", year, month+1)
	fmt.Fprintln(w, " Sun  Mon  Tue  Wed  Thu  Fri  Sat")

	type agendaDay struct {
		date  time.Time
		tasks []service.Task
	}
	var agenda []agendaDay

	for _, week := range calendar.Weeks(days) {
		var b strings.Builder
		for _, d := range week {
			if !d.InCurrentMonth {
				b.WriteString("   . ")
				continue
			}
			onDay := calendar.TasksForDay(tasks, d.Date)
			if len(onDay) > 0 {
				agenda = append(agenda, agendaDay{date: d.Date, tasks: onDay})
			}
			mark := " "
			if len(onDay) > 0 {
				mark = "*"
			}
			if d.IsToday {
				b.WriteString(f.paint(ansiYellow, fmt.Sprintf("[%2d]", d.Date.Day())) + mark)
			} else {
				fmt.Fprintf(&b, " %3d%s", d.Date.Day(), mark)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	for _, a := range agenda {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%04d/%02d/%02d\n", a.date.Year(), int(a.date.Month()), a.date.Day())
		for _, t := range a.tasks {
			check := "[ ]"
			if t.Completed {
				check = "[x]"
			}
			style := category.Lookup(t.Category)
			fmt.Fprintf(w, "  %s %s  %s\n", check, normalizeTitle(t.Text), f.paint(style.ANSI, "#"+style.Label))
		}
	}
}

// FormatStats renders the task summary and a completion bar.
func (f Formatter) FormatStats(w io.Writer, s store.Stats) {
	filled := s.Percent * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	fmt.Fprintf(w, "[%s] %d%%\n", bar, s.Percent)
	fmt.Fprintf(w, "total      %d\n", s.Total)
	fmt.Fprintf(w, "completed  %d\n", s.Completed)
	fmt.Fprintf(w, "active     %d\n", s.Active)
	fmt.Fprintf(w, "overdue    %s\n", f.count(ansiRed, s.Overdue))
	fmt.Fprintf(w, "upcoming   %s\n", f.count(ansiYellow, s.Upcoming))
}

func (f Formatter) count(code string, n int) string {
	if n == 0 {
		return "0"
	}
	return f.paint(code, fmt.Sprint(n))
}

// FormatCategory formats one registry entry.
func (f Formatter) FormatCategory(w io.Writer, s category.Style) {
	fmt.Fprintf(w, "%s  %s %s %s\n", f.paint(s.ANSI, s.Label), s.Background, s.Text, s.Icon)
}

// FormatUser formats the signed-in identity.
func FormatUser(w io.Writer, u service.User) {
	fmt.Fprintln(w, u.Label())
	if u.Email != "" && u.Email != u.Label() {
		fmt.Fprintf(w, "email  %s\n", u.Email)
	}
	fmt.Fprintf(w, "uid    %s\n", u.UID)
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
