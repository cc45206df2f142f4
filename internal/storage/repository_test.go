package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"dormbill/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dormbill.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLedger(t *testing.T, s *SQLiteStore, kind core.LedgerKind, dueCents int64) (core.Dormer, core.Ledger) {
	t.Helper()
	ctx := context.Background()
	d, err := s.CreateDormer(ctx, core.Dormer{Name: "Ana Reyes", Email: "ana@example.com", Room: "204B"})
	if err != nil {
		t.Fatalf("CreateDormer: %v", err)
	}
	l, err := core.NewLedger(core.LedgerSpec{
		DormerID: d.ID,
		Kind:     kind,
		Period:   "2024-09",
		TotalDue: core.FromCents(dueCents),
		DueDate:  core.NewDate(2024, 9, 30),
	})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	l, err = s.CreateLedger(ctx, l)
	if err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}
	return d, l
}

func paymentOf(id string, cents int64) core.Payment {
	return core.Payment{
		ID:         id,
		Amount:     core.FromCents(cents),
		PaidOn:     core.NewDate(2024, 9, 20),
		Method:     "Cash",
		RecordedBy: core.Actor{ID: "admin-1", Name: "Admin", Role: "admin"},
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d, l := seedLedger(t, s, core.KindBill, 50000)

	got, err := s.GetLedger(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if got.DormerID != d.ID || got.TotalDue.Cents != 50000 || !got.DueDate.Equal(l.DueDate.Time) {
		t.Fatalf("unexpected ledger %+v", got)
	}

	list, err := s.ListLedgersForDormer(ctx, d.ID, core.KindBill)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListLedgersForDormer: %v %v", list, err)
	}
	if fines, _ := s.ListLedgersForDormer(ctx, d.ID, core.KindFine); len(fines) != 0 {
		t.Fatalf("expected no fines, got %d", len(fines))
	}

	dormers, err := s.ListDormers(ctx)
	if err != nil || len(dormers) != 1 || dormers[0].Room != "204B" {
		t.Fatalf("ListDormers: %v %v", dormers, err)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.GetLedger(ctx, "missing"); !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
	if _, err := s.GetDormer(ctx, "missing"); !errors.Is(err, core.ErrDormerNotFound) {
		t.Fatalf("expected ErrDormerNotFound, got %v", err)
	}
	_, err := s.CommitPayment(ctx, PaymentCommit{LedgerID: "missing", Delta: core.FromCents(100), Payment: paymentOf("p1", 100)})
	if !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
	l := core.Ledger{DormerID: "nobody", Kind: core.KindBill, Period: "p", TotalDue: core.FromCents(1)}
	if _, err := s.CreateLedger(ctx, l); !errors.Is(err, core.ErrDormerNotFound) {
		t.Fatalf("expected ErrDormerNotFound, got %v", err)
	}
}

func TestSQLiteStoreCommitPayment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, l := seedLedger(t, s, core.KindBill, 50000)

	after, err := s.CommitPayment(ctx, PaymentCommit{LedgerID: l.ID, Delta: core.FromCents(27500), Payment: paymentOf("p1", 27500)})
	if err != nil {
		t.Fatalf("CommitPayment: %v", err)
	}
	if after.AmountPaid.Cents != 27500 {
		t.Fatalf("expected 27500 paid, got %d", after.AmountPaid.Cents)
	}
	if _, err := s.CommitPayment(ctx, PaymentCommit{LedgerID: l.ID, Delta: core.FromCents(30000), Payment: paymentOf("p2", 30000)}); err != nil {
		t.Fatalf("uncapped overpayment should commit: %v", err)
	}

	payments, err := s.ListPayments(ctx, l.ID)
	if err != nil || len(payments) != 2 {
		t.Fatalf("ListPayments: %v %v", payments, err)
	}
	if payments[0].ID != "p2" {
		t.Fatalf("expected newest first, got %s", payments[0].ID)
	}
	if payments[1].RecordedBy.Name != "Admin" || !payments[1].PaidOn.Equal(core.NewDate(2024, 9, 20).Time) {
		t.Fatalf("payment fields lost: %+v", payments[1])
	}

	// Settled ledgers take no more payments.
	_, err = s.CommitPayment(ctx, PaymentCommit{LedgerID: l.ID, Delta: core.FromCents(1), Payment: paymentOf("p3", 1)})
	if !errors.Is(err, ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}
	if open, _ := s.ListOpenLedgers(ctx); len(open) != 0 {
		t.Fatalf("settled ledger should not be open")
	}
}

func TestSQLiteStoreCapAtTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, l := seedLedger(t, s, core.KindEvent, 50000)

	_, err := s.CommitPayment(ctx, PaymentCommit{LedgerID: l.ID, Delta: core.FromCents(60000), Payment: paymentOf("p1", 60000), CapAtTotal: true})
	if !errors.Is(err, ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}
	got, _ := s.GetLedger(ctx, l.ID)
	if !got.AmountPaid.IsZero() {
		t.Fatalf("rejected commit must not change the ledger, paid=%d", got.AmountPaid.Cents)
	}
	if payments, _ := s.ListPayments(ctx, l.ID); len(payments) != 0 {
		t.Fatalf("rejected commit must not insert a payment")
	}
}

func TestSQLiteStoreConcurrentCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, l := seedLedger(t, s, core.KindEvent, 100000)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "p" + string(rune('a'+i))
			_, err := s.CommitPayment(ctx, PaymentCommit{LedgerID: l.ID, Delta: core.FromCents(10000), Payment: paymentOf(id, 10000), CapAtTotal: true})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrCommitConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.GetLedger(ctx, l.ID)
	if accepted != 10 || got.AmountPaid.Cents != 100000 {
		t.Fatalf("expected exactly 10 payments totalling 1000.00, got %d accepted and %d cents", accepted, got.AmountPaid.Cents)
	}
	payments, _ := s.ListPayments(ctx, l.ID)
	var sum int64
	for _, p := range payments {
		sum += p.Amount.Cents
	}
	if sum != got.AmountPaid.Cents {
		t.Fatalf("payment sum %d does not match ledger %d", sum, got.AmountPaid.Cents)
	}
}

func TestSQLiteStoreMarkReminderSent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, l := seedLedger(t, s, core.KindBill, 100)
	day := core.NewDate(2024, 10, 1)

	first, err := s.MarkReminderSent(ctx, l.ID, day)
	if err != nil || !first {
		t.Fatalf("first mark: %v %v", first, err)
	}
	again, err := s.MarkReminderSent(ctx, l.ID, day)
	if err != nil || again {
		t.Fatalf("second mark on the same day should report false: %v %v", again, err)
	}
	if next, _ := s.MarkReminderSent(ctx, l.ID, core.NewDate(2024, 10, 2)); !next {
		t.Fatalf("a new day should be recorded")
	}

	if err := s.ClearReminder(ctx, l.ID, day); err != nil {
		t.Fatalf("clear: %v", err)
	}
	retry, err := s.MarkReminderSent(ctx, l.ID, day)
	if err != nil || !retry {
		t.Fatalf("mark after clear should report true: %v %v", retry, err)
	}
}
