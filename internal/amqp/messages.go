package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	TypePaymentRecorded MessageType = "payment.recorded"
	TypeLedgerOverdue   MessageType = "ledger.overdue"
)

// BillingMessage carries everything the notifier needs to render an email,
// so the consumer never reads the database.
type BillingMessage struct {
	Type        MessageType `json:"type"`
	DormerID    string      `json:"dormer_id"`
	DormerName  string      `json:"dormer_name"`
	DormerEmail string      `json:"dormer_email"`
	LedgerID    string      `json:"ledger_id"`
	LedgerKind  string      `json:"ledger_kind"`
	Period      string      `json:"period"`
	Description string      `json:"description,omitempty"`
	DueDate     string      `json:"due_date,omitempty"`
	Status      string      `json:"status"`

	TotalDueCents   int64 `json:"total_due_cents"`
	AmountPaidCents int64 `json:"amount_paid_cents"`
	BalanceCents    int64 `json:"balance_cents"`

	// Set for payment.recorded only.
	PaymentID   string `json:"payment_id,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Method      string `json:"method,omitempty"`
	PaidOn      string `json:"paid_on,omitempty"`
	RecordedBy  string `json:"recorded_by,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *BillingMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BillingMessageFromJSON decodes and sanity checks a message body.
func BillingMessageFromJSON(data []byte) (*BillingMessage, error) {
	var msg BillingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypePaymentRecorded, TypeLedgerOverdue:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.LedgerID == "" {
		return nil, fmt.Errorf("message without ledger id")
	}
	return &msg, nil
}
