package core

import (
	"strings"
	"time"
)

// Ledger is one payable owed by a dormer: a monthly bill, a fine or an event
// payable. TotalDue never changes after creation and AmountPaid only grows.
// Status is always derived.
type Ledger struct {
	ID          string
	DormerID    string
	Kind        LedgerKind
	Period      string
	Description string
	TotalDue    Money
	AmountPaid  Money
	DueDate     Date
	CreatedAt   time.Time
}

// LedgerSpec is the input for NewLedger.
type LedgerSpec struct {
	ID          string
	DormerID    string
	Kind        LedgerKind
	Period      string
	Description string
	TotalDue    Money
	DueDate     Date
	CreatedAt   time.Time
}

// NewLedger creates a ledger with nothing paid yet.
func NewLedger(s LedgerSpec) (Ledger, error) {
	if strings.TrimSpace(s.DormerID) == "" {
		return Ledger{}, invalid(ErrEmptyDormer, "dormer is required")
	}
	if s.Kind == "" {
		s.Kind = KindBill
	}
	if !s.Kind.Valid() {
		return Ledger{}, invalid(ErrInvalidKind, "unknown ledger kind "+string(s.Kind))
	}
	if strings.TrimSpace(s.Period) == "" {
		return Ledger{}, invalid(ErrEmptyPeriod, "billing period is required")
	}
	if !s.TotalDue.IsPositive() {
		return Ledger{}, invalid(ErrInvalidAmount, "total due must be greater than zero")
	}
	if s.TotalDue.Cents > MaxCents {
		return Ledger{}, invalid(ErrInvalidAmount, "total due is too large")
	}
	if len(s.Description) > 200 {
		return Ledger{}, invalid(ErrDescriptionTooLong, "description too long (max 200 characters)")
	}
	if hasControl(s.Period) || hasControl(s.Description) {
		return Ledger{}, invalid(ErrControlCharacter, "period and description must be a single line of text")
	}
	return Ledger{
		ID:          s.ID,
		DormerID:    strings.TrimSpace(s.DormerID),
		Kind:        s.Kind,
		Period:      strings.TrimSpace(s.Period),
		Description: strings.TrimSpace(s.Description),
		TotalDue:    s.TotalDue,
		DueDate:     s.DueDate,
		CreatedAt:   s.CreatedAt,
	}, nil
}

// RemainingBalance is max(0, TotalDue - AmountPaid).
func (l Ledger) RemainingBalance() Money {
	r := l.TotalDue.Sub(l.AmountPaid)
	if r.Cents < 0 {
		return Money{}
	}
	return r
}

// ApplyPayment returns a copy of l with amount added to AmountPaid.
func (l Ledger) ApplyPayment(amount Money) (Ledger, error) {
	if !amount.IsPositive() {
		return l, invalid(ErrInvalidPaymentAmount, "payment amount must be greater than zero")
	}
	if amount.Cents > MaxCents || l.AmountPaid.Cents > MaxCents-amount.Cents {
		return l, invalid(ErrInvalidPaymentAmount, "payment would push the amount paid past "+FromCents(MaxCents).String())
	}
	l.AmountPaid = l.AmountPaid.Add(amount)
	return l, nil
}

func (l Ledger) Status(today time.Time) Status {
	return Classify(l.TotalDue, l.AmountPaid, l.DueDate, today)
}

// Settled reports whether the ledger is fully paid.
func (l Ledger) Settled() bool {
	return l.AmountPaid.Cmp(l.TotalDue) >= 0
}

// Overpaid reports more paid than owed.
func (l Ledger) Overpaid() bool {
	return l.AmountPaid.Cmp(l.TotalDue) > 0
}
