// Package services orchestrates the billing core, storage and notifications.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/log"
	"dormbill/internal/storage"
)

// LedgerService manages dormers and their ledgers.
type LedgerService struct {
	store     storage.LedgerStore
	summaries Invalidator
	logger    *log.Logger
	now       func() time.Time
}

// Invalidator drops cached views derived from a dormer's ledgers.
type Invalidator interface {
	Invalidate(dormerID string)
}

func NewLedgerService(store storage.LedgerStore, summaries Invalidator, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
}

func (s *LedgerService) CreateDormer(ctx context.Context, d core.Dormer) (core.Dormer, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Room = strings.TrimSpace(d.Room)
	d.Email = strings.TrimSpace(d.Email)
	if err := d.Validate(); err != nil {
		return core.Dormer{}, err
	}
	created, err := s.store.CreateDormer(ctx, d)
	if err != nil {
		return core.Dormer{}, fmt.Errorf("create dormer: %w", err)
	}
	s.logger.InfoContext(ctx, "Dormer created",
		log.FieldDormerID, created.ID,
		log.FieldOperation, log.OpCreate)
	return created, nil
}

func (s *LedgerService) GetDormer(ctx context.Context, id string) (core.Dormer, error) {
	return s.store.GetDormer(ctx, id)
}

func (s *LedgerService) ListDormers(ctx context.Context) ([]core.Dormer, error) {
	return s.store.ListDormers(ctx)
}

// CreateLedger validates the new ledger and stores a new ledger with nothing paid.
func (s *LedgerService) CreateLedger(ctx context.Context, spec core.LedgerSpec) (core.Ledger, error) {
	l, err := core.NewLedger(spec)
	if err != nil {
		return core.Ledger{}, err
	}
	if _, err := s.store.GetDormer(ctx, l.DormerID); err != nil {
		return core.Ledger{}, err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	created, err := s.store.CreateLedger(ctx, l)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("create ledger: %w", err)
	}
	if s.summaries != nil {
		s.summaries.Invalidate(created.DormerID)
	}
	s.logger.InfoContext(ctx, "Ledger created",
		log.FieldDormerID, created.DormerID,
		log.FieldLedgerID, created.ID,
		log.FieldLedgerKind, string(created.Kind),
		log.FieldAmountCents, created.TotalDue.Cents)
	return created, nil
}

func (s *LedgerService) GetLedger(ctx context.Context, id string) (core.Ledger, error) {
	return s.store.GetLedger(ctx, id)
}

// ListLedgers returns a dormer's ledgers, optionally of one kind only.
func (s *LedgerService) ListLedgers(ctx context.Context, dormerID string, kind core.LedgerKind) ([]core.Ledger, error) {
	if _, err := s.store.GetDormer(ctx, dormerID); err != nil {
		return nil, err
	}
	return s.store.ListLedgersForDormer(ctx, dormerID, kind)
}

// ListPayments returns a ledger's payment history, newest first.
func (s *LedgerService) ListPayments(ctx context.Context, ledgerID string) ([]core.Payment, error) {
	if _, err := s.store.GetLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, ledgerID)
}
