package memory

import (
	"context"
	"errors"
	"testing"

	"dormbill/internal/core"
	"dormbill/internal/storage"
)

func TestStoreCommitPayment(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d, err := s.CreateDormer(ctx, core.Dormer{Name: "Ben", Room: "101"})
	if err != nil {
		t.Fatalf("CreateDormer: %v", err)
	}
	l, err := s.CreateLedger(ctx, core.Ledger{DormerID: d.ID, Kind: core.KindEvent, Period: "Acquaintance Party", TotalDue: core.FromCents(50000)})
	if err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}

	p := core.Payment{ID: "p1", Amount: core.FromCents(60000), Method: "Cash"}
	if _, err := s.CommitPayment(ctx, storage.PaymentCommit{LedgerID: l.ID, Delta: p.Amount, Payment: p, CapAtTotal: true}); !errors.Is(err, storage.ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}

	p = core.Payment{ID: "p2", Amount: core.FromCents(20000), Method: "Cash"}
	after, err := s.CommitPayment(ctx, storage.PaymentCommit{LedgerID: l.ID, Delta: p.Amount, Payment: p, CapAtTotal: true})
	if err != nil || after.AmountPaid.Cents != 20000 {
		t.Fatalf("CommitPayment: %v %+v", err, after)
	}
	payments, _ := s.ListPayments(ctx, l.ID)
	if len(payments) != 1 || payments[0].LedgerID != l.ID {
		t.Fatalf("unexpected payments %+v", payments)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.GetLedger(ctx, "x"); !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
	if _, err := s.CreateLedger(ctx, core.Ledger{DormerID: "x"}); !errors.Is(err, core.ErrDormerNotFound) {
		t.Fatalf("expected ErrDormerNotFound, got %v", err)
	}
}
