// Package storage persists dormers, ledgers and payments.
//
// Payments are committed as deltas: the store adds the payment amount to the
// ledger's paid total and inserts the payment row in a single transaction,
// so concurrent payments against one ledger never lose an update.
package storage

import (
	"context"
	"errors"

	"dormbill/internal/core"
)

// ErrCommitConflict is returned when a guarded commit no longer fits the
// ledger because another payment landed first.
var ErrCommitConflict = errors.New("ledger changed since it was read")

// PaymentCommit describes one payment to apply.
type PaymentCommit struct {
	LedgerID string
	Delta    core.Money
	Payment  core.Payment
	// CapAtTotal refuses the commit if it would push the paid total past
	// the amount due.
	CapAtTotal bool
}

// LedgerReader reads ledgers.
type LedgerReader interface {
	GetLedger(ctx context.Context, id string) (core.Ledger, error)
	ListLedgersForDormer(ctx context.Context, dormerID string, kind core.LedgerKind) ([]core.Ledger, error)
}

// PaymentCommitter applies payments atomically and returns the ledger as
// stored after the commit.
type PaymentCommitter interface {
	CommitPayment(ctx context.Context, c PaymentCommit) (core.Ledger, error)
}

// LedgerStore is the full persistence surface used by the services.
type LedgerStore interface {
	LedgerReader
	PaymentCommitter

	CreateDormer(ctx context.Context, d core.Dormer) (core.Dormer, error)
	GetDormer(ctx context.Context, id string) (core.Dormer, error)
	ListDormers(ctx context.Context) ([]core.Dormer, error)

	CreateLedger(ctx context.Context, l core.Ledger) (core.Ledger, error)
	ListPayments(ctx context.Context, ledgerID string) ([]core.Payment, error)
	// ListOpenLedgers returns every ledger with a positive remaining balance.
	ListOpenLedgers(ctx context.Context) ([]core.Ledger, error)

	// MarkReminderSent records a reminder for ledgerID on day. It reports
	// false when one was already recorded for that day.
	MarkReminderSent(ctx context.Context, ledgerID string, day core.Date) (bool, error)
	// ClearReminder removes the record for ledgerID on day so a later pass
	// on the same day can send it again.
	ClearReminder(ctx context.Context, ledgerID string, day core.Date) error

	Ping(ctx context.Context) error
	Close() error
}
