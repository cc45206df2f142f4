// Package memory is an in-process LedgerStore used by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu        sync.Mutex
	dormers   map[string]core.Dormer
	ledgers   map[string]core.Ledger
	payments  map[string][]core.Payment
	reminders map[string]bool
	seq       int64
}

var _ storage.LedgerStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		dormers:   make(map[string]core.Dormer),
		ledgers:   make(map[string]core.Ledger),
		payments:  make(map[string][]core.Payment),
		reminders: make(map[string]bool),
	}
}

func (s *Store) CreateDormer(_ context.Context, d core.Dormer) (core.Dormer, error) {
	if err := d.Validate(); err != nil {
		return core.Dormer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.tick()
	}
	s.dormers[d.ID] = d
	return d, nil
}

func (s *Store) GetDormer(_ context.Context, id string) (core.Dormer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dormers[id]
	if !ok {
		return core.Dormer{}, fmt.Errorf("get dormer %s: %w", id, core.ErrDormerNotFound)
	}
	return d, nil
}

func (s *Store) ListDormers(_ context.Context) ([]core.Dormer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Dormer, 0, len(s.dormers))
	for _, d := range s.dormers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateLedger(_ context.Context, l core.Ledger) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dormers[l.DormerID]; !ok {
		return core.Ledger{}, fmt.Errorf("create ledger: %w", core.ErrDormerNotFound)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.tick()
	}
	s.ledgers[l.ID] = l
	return l, nil
}

func (s *Store) GetLedger(_ context.Context, id string) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		return core.Ledger{}, fmt.Errorf("get ledger %s: %w", id, core.ErrLedgerNotFound)
	}
	return l, nil
}

func (s *Store) ListLedgersForDormer(_ context.Context, dormerID string, kind core.LedgerKind) ([]core.Ledger, error) {
	return s.filter(func(l core.Ledger) bool {
		return l.DormerID == dormerID && (kind == "" || l.Kind == kind)
	}), nil
}

func (s *Store) ListOpenLedgers(_ context.Context) ([]core.Ledger, error) {
	return s.filter(func(l core.Ledger) bool { return !l.Settled() }), nil
}

// CommitPayment mirrors the SQLite guards under the store mutex.
func (s *Store) CommitPayment(_ context.Context, c storage.PaymentCommit) (core.Ledger, error) {
	if !c.Delta.IsPositive() || c.Delta != c.Payment.Amount {
		return core.Ledger{}, fmt.Errorf("commit payment: %w", core.ErrInvalidPaymentAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[c.LedgerID]
	if !ok {
		return core.Ledger{}, fmt.Errorf("commit payment %s: %w", c.LedgerID, core.ErrLedgerNotFound)
	}
	if l.Settled() || (c.CapAtTotal && l.AmountPaid.Add(c.Delta).Cmp(l.TotalDue) > 0) {
		return core.Ledger{}, fmt.Errorf("commit payment %s: %w", c.LedgerID, storage.ErrCommitConflict)
	}
	l.AmountPaid = l.AmountPaid.Add(c.Delta)
	s.ledgers[l.ID] = l

	p := c.Payment
	p.LedgerID = l.ID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.tick()
	}
	s.payments[l.ID] = append(s.payments[l.ID], p)
	return l, nil
}

func (s *Store) ListPayments(_ context.Context, ledgerID string) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.payments[ledgerID]
	out := make([]core.Payment, len(src))
	for i, p := range src {
		out[len(src)-1-i] = p
	}
	return out, nil
}

func (s *Store) MarkReminderSent(_ context.Context, ledgerID string, day core.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledgerID + "|" + day.String()
	if s.reminders[key] {
		return false, nil
	}
	s.reminders[key] = true
	return true, nil
}

func (s *Store) ClearReminder(_ context.Context, ledgerID string, day core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, ledgerID+"|"+day.String())
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) filter(keep func(core.Ledger) bool) []core.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Ledger
	for _, l := range s.ledgers {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// tick hands out strictly increasing timestamps so ordering is stable.
func (s *Store) tick() time.Time {
	s.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}
