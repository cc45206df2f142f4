package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/log"
	"dormbill/internal/notify"
	"dormbill/internal/storage"
)

const defaultNotifyTimeout = 5 * time.Second

// PaymentResult is what a committed payment produced.
type PaymentResult struct {
	Ledger  core.Ledger
	Payment core.Payment
	Status  core.Status
}

// PaymentService records payments: validate with the core recorder, commit
// the delta to storage, then notify. A notification failure never undoes a
// committed payment.
type PaymentService struct {
	store         storage.LedgerStore
	recorder      *core.Recorder
	notifier      notify.Notifier
	summaries     Invalidator
	observer      Observer
	logger        *log.Logger
	now           func() time.Time
	notifyTimeout time.Duration
}

type PaymentOption func(*PaymentService)

func WithNotifier(n notify.Notifier) PaymentOption {
	return func(s *PaymentService) { s.notifier = n }
}

func WithInvalidator(i Invalidator) PaymentOption {
	return func(s *PaymentService) { s.summaries = i }
}

func WithObserver(o Observer) PaymentOption {
	return func(s *PaymentService) { s.observer = observerOrNop(o) }
}

func WithLogger(l *log.Logger) PaymentOption {
	return func(s *PaymentService) { s.logger = l.WithComponent(log.ComponentPayment) }
}

func WithNow(now func() time.Time) PaymentOption {
	return func(s *PaymentService) { s.now = now }
}

func NewPaymentService(store storage.LedgerStore, recorder *core.Recorder, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{
		store:         store,
		recorder:      recorder,
		observer:      nopObserver{},
		logger:        log.Discard(),
		now:           time.Now,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment applies in to the ledger identified by ledgerID on behalf of by.
func (s *PaymentService) RecordPayment(ctx context.Context, ledgerID string, in core.PaymentInput, by core.Actor) (PaymentResult, error) {
	var target *core.Ledger
	current, err := s.store.GetLedger(ctx, ledgerID)
	switch {
	case err == nil:
		target = &current
	case errors.Is(err, core.ErrLedgerNotFound):
	default:
		return PaymentResult{}, fmt.Errorf("load ledger: %w", err)
	}

	next, p, err := s.recorder.RecordPayment(target, in, by)
	if err != nil {
		s.reject(ctx, ledgerID, err)
		return PaymentResult{}, err
	}

	committed, err := s.store.CommitPayment(ctx, storage.PaymentCommit{
		LedgerID:   ledgerID,
		Delta:      p.Amount,
		Payment:    p,
		CapAtTotal: s.recorder.Policy(current.Kind) == core.OverpaymentReject,
	})
	switch {
	case errors.Is(err, storage.ErrCommitConflict):
		err = core.NewValidationError(core.ErrInvalidPaymentAmount,
			"ledger changed while the payment was recorded; it is now fully paid or the payment exceeds the remaining balance")
		s.reject(ctx, ledgerID, err)
		return PaymentResult{}, err
	case errors.Is(err, core.ErrLedgerNotFound):
		err = core.NewValidationError(core.ErrLedgerNotFound, "ledger does not exist")
		s.reject(ctx, ledgerID, err)
		return PaymentResult{}, err
	case err != nil:
		return PaymentResult{}, fmt.Errorf("commit payment: %w", err)
	}
	if committed.AmountPaid != next.AmountPaid {
		s.logger.DebugContext(ctx, "Concurrent payment landed on ledger",
			log.FieldLedgerID, ledgerID,
			"expected_paid_cents", next.AmountPaid.Cents,
			"committed_paid_cents", committed.AmountPaid.Cents)
	}

	now := s.now()
	result := PaymentResult{Ledger: committed, Payment: p, Status: committed.Status(now)}

	if s.summaries != nil {
		s.summaries.Invalidate(committed.DormerID)
	}
	s.observer.ObservePayment(string(committed.Kind), p.Method, p.Amount.Cents)
	log.NewStructuredLogger(s.logger).
		LogPaymentRecorded(ctx, committed.ID, p.ID, p.Amount.Cents, p.Method, string(result.Status))

	s.notifyRecorded(ctx, committed, p, now)
	return result, nil
}

func (s *PaymentService) reject(ctx context.Context, ledgerID string, err error) {
	code := core.ErrorCode(err)
	s.observer.ObserveRejection(code)
	s.logger.InfoContext(ctx, "Payment rejected",
		log.FieldLedgerID, ledgerID,
		"code", code,
		"reason", core.ReasonOf(err))
}

func (s *PaymentService) notifyRecorded(ctx context.Context, l core.Ledger, p core.Payment, now time.Time) {
	if s.notifier == nil {
		return
	}
	d, err := s.store.GetDormer(ctx, l.DormerID)
	if err != nil {
		s.logger.WarnContext(ctx, "Dormer lookup for receipt failed",
			log.FieldDormerID, l.DormerID,
			log.FieldError, err)
		d = core.Dormer{ID: l.DormerID}
	}
	msg := notify.PaymentRecorded(d, l, p, now)

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, msg); err != nil {
		s.observer.ObserveNotificationFailure(string(msg.Type))
		s.logger.ErrorContext(ctx, "Failed to send payment notification",
			log.FieldPaymentID, p.ID,
			log.FieldMessageType, string(msg.Type),
			log.FieldError, err)
	}
}

// Methods lists the accepted payment methods.
func (s *PaymentService) Methods() []string {
	return s.recorder.Methods()
}
