package services

import (
	"context"
	"fmt"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/log"
	"dormbill/internal/notify"
	"dormbill/internal/storage"
)

// ReminderProcessor sends overdue reminders for unpaid ledgers past their due date.
type ReminderProcessor struct {
	store    storage.LedgerStore
	notifier notify.Notifier
	cadence  ReminderCadence
	observer Observer
	logger   *log.Logger
}

func NewReminderProcessor(store storage.LedgerStore, notifier notify.Notifier, cadence ReminderCadence, observer Observer, logger *log.Logger) *ReminderProcessor {
	if cadence == nil {
		cadence = DailyCadence{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderProcessor{
		store:    store,
		notifier: notifier,
		cadence:  cadence,
		observer: observerOrNop(observer),
		logger:   logger.WithComponent(log.ComponentReminder),
	}
}

// ProcessOverdue sends at most one reminder per overdue ledger for the
// calendar day of now and returns how many were sent.
func (p *ReminderProcessor) ProcessOverdue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.notifier == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	open, err := p.store.ListOpenLedgers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open ledgers: %w", err)
	}
	today := core.DateOf(now)

	p.logger.InfoContext(ctx, "Processing overdue ledgers",
		"open_ledgers", len(open),
		"processing_date", today.String())

	sent := 0
	dormers := make(map[string]core.Dormer)
	for _, l := range open {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if l.Status(now) != core.StatusOverdue || !p.cadence.ShouldRemind(l.DueDate, now) {
			continue
		}

		first, err := p.store.MarkReminderSent(ctx, l.ID, today)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to record reminder",
				log.FieldLedgerID, l.ID,
				log.FieldError, err)
			continue
		}
		if !first {
			continue
		}

		d, ok := dormers[l.DormerID]
		if !ok {
			d, err = p.store.GetDormer(ctx, l.DormerID)
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to load dormer for reminder",
					log.FieldDormerID, l.DormerID,
					log.FieldError, err)
				p.releaseReminder(ctx, l.ID, today)
				continue
			}
			dormers[l.DormerID] = d
		}

		msg := notify.LedgerOverdue(d, l, now)
		if err := p.notifier.Notify(ctx, msg); err != nil {
			p.observer.ObserveNotificationFailure(string(msg.Type))
			p.logger.ErrorContext(ctx, "Failed to send overdue reminder",
				log.FieldLedgerID, l.ID,
				log.FieldError, err)
			p.releaseReminder(ctx, l.ID, today)
			continue
		}

		sent++
		p.observer.ObserveReminder()
		p.logger.InfoContext(ctx, "Overdue reminder sent",
			log.FieldDormerID, d.ID,
			log.FieldLedgerID, l.ID,
			log.FieldLedgerKind, string(l.Kind),
			log.FieldAmountCents, l.RemainingBalance().Cents)
	}

	p.logger.InfoContext(ctx, "Overdue processing complete",
		"sent", sent,
		"total_checked", len(open))
	return sent, nil
}

// releaseReminder drops the claim taken for a reminder that was not delivered.
func (p *ReminderProcessor) releaseReminder(ctx context.Context, ledgerID string, day core.Date) {
	if err := p.store.ClearReminder(ctx, ledgerID, day); err != nil {
		p.logger.ErrorContext(ctx, "Failed to release reminder",
			log.FieldLedgerID, ledgerID,
			log.FieldError, err)
	}
}
