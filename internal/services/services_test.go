package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"dormbill/internal/amqp"
	"dormbill/internal/core"
	"dormbill/internal/storage"
	"dormbill/internal/storage/memory"
)

var fixedNow = time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*amqp.BillingMessage
	err  error
	sent chan struct{}
}

func (n *recordingNotifier) Notify(_ context.Context, msg *amqp.BillingMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	if n.sent != nil {
		select {
		case n.sent <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *recordingNotifier) messages() []*amqp.BillingMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*amqp.BillingMessage(nil), n.msgs...)
}

type countingObserver struct {
	mu         sync.Mutex
	payments   int
	rejections map[string]int
	failures   int
	hits       int
	misses     int
	reminders  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{rejections: make(map[string]int)}
}

func (o *countingObserver) ObservePayment(string, string, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payments++
}

func (o *countingObserver) ObserveRejection(code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejections[code]++
}

func (o *countingObserver) ObserveNotificationFailure(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) ObserveCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *countingObserver) ObserveReminder() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reminders++
}

func seedDormer(t *testing.T, store *memory.Store, name string) core.Dormer {
	t.Helper()
	d, err := store.CreateDormer(context.Background(), core.Dormer{Name: name, Room: "204", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("seed dormer: %v", err)
	}
	return d
}

func seedLedger(t *testing.T, store *memory.Store, dormerID string, kind core.LedgerKind, due string, dueDate core.Date) core.Ledger {
	t.Helper()
	l, err := core.NewLedger(core.LedgerSpec{
		DormerID: dormerID,
		Kind:     kind,
		Period:   "2024-09",
		TotalDue: core.MustMoney(due),
		DueDate:  dueDate,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	l, err = store.CreateLedger(context.Background(), l)
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return l
}

func payment(amount, method string) core.PaymentInput {
	return core.PaymentInput{Amount: core.MustMoney(amount), Method: method}
}

func commitOf(l core.Ledger, p core.Payment) storage.PaymentCommit {
	return storage.PaymentCommit{LedgerID: l.ID, Delta: p.Amount, Payment: p}
}
