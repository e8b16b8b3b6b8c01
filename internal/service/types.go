// Package service defines the backend-agnostic interface for task operations.
package service

import "time"

// DefaultCategory is assigned to tasks stored without a category.
const DefaultCategory = "工作"

// Task represents a single to-do item as the client sees it.
type Task struct {
	ID        string
	Text      string
	Completed bool
	StartDate string // YYYY-MM-DD or empty
	DueDate   string // YYYY-MM-DD or empty
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask holds the fields supplied when creating a task.
type NewTask struct {
	Text      string
	StartDate string
	DueDate   string
	Category  string
}

// Record is a stored task document.
// The current schema lives under users/{uid}/tasks and leaves UserID empty;
// the legacy flat tasks collection carries UserID.
type Record struct {
	ID        string
	Title     string
	Completed bool
	UserID    string
	StartDate *time.Time
	DueDate   *time.Time
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Batch is a set of writes applied atomically by CommitBatch.
type Batch struct {
	// Creates are written into the user's task collection under new ids.
	Creates []Record

	// LegacyDeletes are document ids removed from the legacy collection.
	LegacyDeletes []string
}

// User is a resolved auth session identity.
type User struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Label returns the best human-readable name for the user.
func (u User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UID
}

// dateLayout is the calendar date format used for StartDate and DueDate.
const dateLayout = "2006-01-02"

// ToTask converts a stored record to a client task.
// Dates are rendered in the local time zone.
func (r Record) ToTask() Task {
	t := Task{
		ID:        r.ID,
		Text:      r.Title,
		Completed: r.Completed,
		Category:  r.Category,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if r.StartDate != nil {
		t.StartDate = r.StartDate.In(time.Local).Format(dateLayout)
	}
	if r.DueDate != nil {
		t.DueDate = r.DueDate.In(time.Local).Format(dateLayout)
	}
	return t
}

// RecordFrom builds the record persisted for a new task.
// Unparsable dates are stored as absent.
func RecordFrom(n NewTask) Record {
	return Record{
		Title:     n.Text,
		Category:  n.Category,
		StartDate: parseDay(n.StartDate),
		DueDate:   parseDay(n.DueDate),
	}
}

func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return nil
	}
	return &t
}
