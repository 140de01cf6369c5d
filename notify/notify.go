// Package notify delivers deadline reminders. The Notifier interface keeps
// the sweep logic channel-agnostic; Telegram is the shipped channel.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Notifier sends one reminder message.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Reminder is the material for one deadline message.
type Reminder struct {
	Course     string
	Assignment string
	DueAt      time.Time
	RawDue     string
	DaysUntil  int
}

// Subject is the reminder headline, urgency scaled by how close the
// deadline is.
func (r Reminder) Subject() string {
	switch {
	case r.DaysUntil <= 0:
		return "Assignment due TODAY: " + r.Assignment
	case r.DaysUntil == 1:
		return "Assignment due tomorrow: " + r.Assignment
	default:
		return fmt.Sprintf("Assignment due in %d days: %s", r.DaysUntil, r.Assignment)
	}
}

// Body renders the message text.
func (r Reminder) Body() string {
	due := r.DueAt.Format("Monday, 2 January 2006, 3:04 PM")
	if r.RawDue != "" {
		due = r.RawDue
	}
	return fmt.Sprintf("%s\n\nCourse: %s\nDue: %s", r.Subject(), r.Course, due)
}

// DaysUntil counts whole days from now to due, floored at zero for
// same-day deadlines.
func DaysUntil(now, due time.Time) int {
	d := int(due.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// ShouldRemind reports whether a deadline this many days out sits on an
// advance-day mark. Day 1 and day 0 always remind.
func ShouldRemind(daysUntil int, advanceDays []int) bool {
	if daysUntil <= 1 {
		return true
	}
	for _, d := range advanceDays {
		if daysUntil == d {
			return true
		}
	}
	return false
}
