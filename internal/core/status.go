package core

import "time"

type Status string

const (
	StatusPaid          Status = "Paid"
	StatusUnpaid        Status = "Unpaid"
	StatusPartiallyPaid Status = "Partially Paid"
	StatusOverdue       Status = "Overdue"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusUnpaid, StatusPartiallyPaid, StatusOverdue, StatusPaid}

// Classify derives a ledger status. Rules are checked in order:
//
//  1. paid >= due                                  -> Paid
//  2. paid == 0, due date set and already passed   -> Overdue
//  3. paid == 0                                    -> Unpaid
//  4. otherwise                                    -> Partially Paid
//
// Dates compare by calendar day, so a bill due today is not overdue yet.
// A partially paid bill past its due date stays Partially Paid.
func Classify(totalDue, amountPaid Money, dueDate Date, today time.Time) Status {
	if amountPaid.Cmp(totalDue) >= 0 {
		return StatusPaid
	}
	if amountPaid.IsZero() {
		if !dueDate.IsZero() && DateOf(today).After(DateOf(dueDate.Time).Time) {
			return StatusOverdue
		}
		return StatusUnpaid
	}
	return StatusPartiallyPaid
}
