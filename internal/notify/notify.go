// Package notify tells dormers about recorded payments and overdue ledgers.
//
// The HTTP process only publishes messages; cmd/dormbill-notifier consumes
// them and sends the emails.
package notify

import (
	"context"
	"time"

	"dormbill/internal/amqp"
	"dormbill/internal/core"
	"dormbill/internal/log"
)

// Notifier delivers a billing message somewhere. Callers treat failures as
// non-fatal.
type Notifier interface {
	Notify(ctx context.Context, msg *amqp.BillingMessage) error
}

// Publisher is the part of amqp.Client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.BillingMessage) error
}

// QueueNotifier hands messages to the broker.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg *amqp.BillingMessage) error {
	return n.pub.Publish(ctx, msg)
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotifier)}
}

func (n *LogNotifier) Notify(ctx context.Context, msg *amqp.BillingMessage) error {
	n.logger.InfoContext(ctx, "Notification not sent, no broker configured",
		log.FieldMessageType, msg.Type,
		log.FieldLedgerID, msg.LedgerID,
		log.FieldDormerID, msg.DormerID)
	return nil
}

// PaymentRecorded builds the receipt message for a committed payment.
func PaymentRecorded(d core.Dormer, l core.Ledger, p core.Payment, now time.Time) *amqp.BillingMessage {
	msg := ledgerMessage(amqp.TypePaymentRecorded, d, l, now)
	msg.PaymentID = p.ID
	msg.AmountCents = p.Amount.Cents
	msg.Method = p.Method
	msg.PaidOn = p.PaidOn.String()
	msg.RecordedBy = p.RecordedBy.Name
	return msg
}

// LedgerOverdue builds the reminder for an overdue ledger.
func LedgerOverdue(d core.Dormer, l core.Ledger, now time.Time) *amqp.BillingMessage {
	return ledgerMessage(amqp.TypeLedgerOverdue, d, l, now)
}

func ledgerMessage(t amqp.MessageType, d core.Dormer, l core.Ledger, now time.Time) *amqp.BillingMessage {
	return &amqp.BillingMessage{
		Type:            t,
		DormerID:        d.ID,
		DormerName:      d.Name,
		DormerEmail:     d.Email,
		LedgerID:        l.ID,
		LedgerKind:      string(l.Kind),
		Period:          l.Period,
		Description:     l.Description,
		DueDate:         l.DueDate.String(),
		Status:          string(l.Status(now)),
		TotalDueCents:   l.TotalDue.Cents,
		AmountPaidCents: l.AmountPaid.Cents,
		BalanceCents:    l.RemainingBalance().Cents,
		Timestamp:       now.UTC(),
	}
}
