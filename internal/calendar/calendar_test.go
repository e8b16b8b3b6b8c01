package calendar

import (
	"testing"
	"time"

	"cloudtodo/internal/service"
)

func TestGenerateDays_GridShape(t *testing.T) {
	today := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.Local)
	for year := 2023; year <= 2026; year++ {
		for month := 0; month < 12; month++ {
			days := GenerateDays(year, month, today)
			if len(days)%7 != 0 {
				t.Fatalf("%d-%02d: length %d is not a multiple of 7", year, month+1, len(days))
			}
			if len(days) < 28 || len(days) > 42 {
				t.Fatalf("%d-%02d: unexpected length %d", year, month+1, len(days))
			}
			if wd := days[0].Date.Weekday(); wd != time.Sunday {
				t.Fatalf("%d-%02d: starts on %v", year, month+1, wd)
			}
			if wd := days[len(days)-1].Date.Weekday(); wd != time.Saturday {
				t.Fatalf("%d-%02d: ends on %v", year, month+1, wd)
			}
			inMonth := 0
			for _, d := range days {
				if d.InCurrentMonth {
					inMonth++
					if int(d.Date.Month())-1 != month {
						t.Fatalf("%d-%02d: %v flagged current month", year, month+1, d.Date)
					}
				}
			}
			want := time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.Local).Day()
			if inMonth != want {
				t.Fatalf("%d-%02d: %d in-month days, want %d", year, month+1, inMonth, want)
			}
		}
	}
}

func TestGenerateDays_FebruaryStartingSunday(t *testing.T) {
	// February 2015 starts on a Sunday and ends on a Saturday.
	days := GenerateDays(2015, 1, time.Now())
	if len(days) != 28 {
		t.Errorf("expected 28 days, got %d", len(days))
	}
}

func TestGenerateDays_IsToday(t *testing.T) {
	today := time.Date(2024, time.March, 15, 23, 59, 0, 0, time.Local)
	days := GenerateDays(2024, 2, today)
	count := 0
	for _, d := range days {
		if d.IsToday {
			count++
			if d.Date.Day() != 15 || d.Date.Month() != time.March {
				t.Errorf("wrong day flagged today: %v", d.Date)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one today, got %d", count)
	}

	other := GenerateDays(2024, 5, today)
	for _, d := range other {
		if d.IsToday {
			t.Errorf("June grid should not contain today, got %v", d.Date)
		}
	}
}

func TestTasksForDay_InclusiveRange(t *testing.T) {
	task := service.Task{ID: "t1", Text: "Trip", StartDate: "2024-03-01", DueDate: "2024-03-05"}
	days := GenerateDays(2024, 2, time.Now())

	for _, d := range days {
		got := TasksForDay([]service.Task{task}, d.Date)
		inRange := d.Date.Month() == time.March && d.Date.Day() >= 1 && d.Date.Day() <= 5
		if inRange && len(got) != 1 {
			t.Errorf("expected task on %v", d.Date.Format("2006-01-02"))
		}
		if !inRange && len(got) != 0 {
			t.Errorf("unexpected task on %v", d.Date.Format("2006-01-02"))
		}
	}
}

func TestTasksForDay_MissingBound(t *testing.T) {
	day := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.Local)
	tasks := []service.Task{
		{ID: "a", DueDate: "2024-03-05"},
		{ID: "b", StartDate: "2024-03-01"},
		{ID: "c"},
	}
	if got := TasksForDay(tasks, day); len(got) != 0 {
		t.Errorf("tasks missing a bound must not appear, got %d", len(got))
	}
}

func TestTasksForDay_IgnoresTimeOfDay(t *testing.T) {
	day := time.Date(2024, time.March, 5, 23, 45, 0, 0, time.Local)
	task := service.Task{ID: "a", StartDate: "2024-03-05", DueDate: "2024-03-05"}
	if !OnDay(task, day) {
		t.Error("single-day task should appear regardless of time of day")
	}
}

func TestWeeks(t *testing.T) {
	days := GenerateDays(2024, 2, time.Now())
	rows := Weeks(days)
	if len(rows)*7 != len(days) {
		t.Fatalf("expected %d rows, got %d", len(days)/7, len(rows))
	}
	for _, r := range rows {
		if r[0].Date.Weekday() != time.Sunday {
			t.Errorf("row starts on %v", r[0].Date.Weekday())
		}
	}
}

func TestGenerateDaysNow_MarksToday(t *testing.T) {
	now := time.Now()
	days := GenerateDaysNow(now.Year(), int(now.Month())-1)

	found := 0
	for _, d := range days {
		if d.IsToday {
			found++
		}
	}
	// A run straddling midnight may see no today cell.
	if found > 1 {
		t.Errorf("expected at most one today cell, got %d", found)
	}
}
