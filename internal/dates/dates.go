// Package dates classifies and formats task due dates.
//
// All comparisons are date-only in the local time zone: the time of day of
// both the task date and "today" is discarded before comparing.
package dates

import (
	"fmt"
	"time"
)

const (
	// NoDate is displayed in place of an absent date.
	NoDate = "無日期"

	// Layout is the storage layout for calendar dates.
	Layout = "2006-01-02"

	// UpcomingDays is the inclusive window, in days from today, for IsUpcoming.
	UpcomingDays = 3
)

// Parse parses a calendar date given as YYYY-MM-DD or RFC 3339.
// A YYYY-MM-DD value is interpreted in the local time zone.
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(Layout, s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(time.Local), true
	}
	return time.Time{}, false
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b, date-only.
func DaysBetween(a, b time.Time) int {
	a, b = DateOnly(a), DateOnly(b)
	// Dates at UTC midnight avoid DST-length days.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// FormatDate renders s as YYYY/MM/DD, or NoDate when s is absent or invalid.
func FormatDate(s string) string {
	t, ok := Parse(s)
	if !ok {
		return NoDate
	}
	return fmt.Sprintf("%04d/%02d/%02d", t.Year(), int(t.Month()), t.Day())
}

// IsUpcoming reports whether s falls within the next UpcomingDays days,
// today included.
func IsUpcoming(s string) bool { return IsUpcomingOn(s, time.Now()) }

// IsUpcomingOn is IsUpcoming against an explicit today.
func IsUpcomingOn(s string, today time.Time) bool {
	t, ok := Parse(s)
	if !ok {
		return false
	}
	diff := DaysBetween(today.In(time.Local), t)
	return diff >= 0 && diff <= UpcomingDays
}

// IsOverdue reports whether s is strictly before today.
func IsOverdue(s string) bool { return IsOverdueOn(s, time.Now()) }

// IsOverdueOn is IsOverdue against an explicit today.
func IsOverdueOn(s string, today time.Time) bool {
	t, ok := Parse(s)
	if !ok {
		return false
	}
	return DaysBetween(today.In(time.Local), t) < 0
}
