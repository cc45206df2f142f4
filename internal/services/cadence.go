package services

import (
	"fmt"
	"strings"
	"time"

	"dormbill/internal/core"
)

// ReminderCadence decides on which days an overdue ledger gets a reminder.
// Reminders are still limited to one per ledger per day by storage.
type ReminderCadence interface {
	ShouldRemind(dueDate core.Date, today time.Time) bool
}

// daysOverdue counts whole days between dueDate and today. Day one is the
// first day after the due date.
func daysOverdue(dueDate core.Date, today time.Time) int {
	if dueDate.IsZero() {
		return 0
	}
	return int(core.DateOf(today).Sub(dueDate.Time).Hours() / 24)
}

// DailyCadence reminds every day a ledger stays overdue.
type DailyCadence struct{}

func (DailyCadence) ShouldRemind(dueDate core.Date, today time.Time) bool {
	return daysOverdue(dueDate, today) >= 1
}

// WeeklyCadence reminds on the first overdue day and every seventh day after.
type WeeklyCadence struct{}

func (WeeklyCadence) ShouldRemind(dueDate core.Date, today time.Time) bool {
	n := daysOverdue(dueDate, today)
	return n >= 1 && (n-1)%7 == 0
}

// EscalatingCadence reminds on days 1, 3, 7 and 14, then every 14 days.
type EscalatingCadence struct{}

func (EscalatingCadence) ShouldRemind(dueDate core.Date, today time.Time) bool {
	switch n := daysOverdue(dueDate, today); {
	case n < 1:
		return false
	case n == 1, n == 3, n == 7:
		return true
	default:
		return n >= 14 && n%14 == 0
	}
}

// CadenceFor returns the cadence registered under name.
func CadenceFor(name string) (ReminderCadence, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "daily":
		return DailyCadence{}, nil
	case "weekly":
		return WeeklyCadence{}, nil
	case "escalating":
		return EscalatingCadence{}, nil
	}
	return nil, fmt.Errorf("unknown reminder cadence: %s", name)
}
