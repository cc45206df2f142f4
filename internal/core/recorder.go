package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPaymentMethods is the method list used when none is configured.
var DefaultPaymentMethods = []string{"Cash", "Bank Transfer", "GCash", "PayMaya"}

// OverpaymentPolicy decides what happens when a payment exceeds the
// remaining balance of a ledger that is not yet settled.
type OverpaymentPolicy string

const (
	OverpaymentAllow  OverpaymentPolicy = "allow"
	OverpaymentReject OverpaymentPolicy = "reject"
)

// ParseOverpaymentPolicy is case-insensitive.
func ParseOverpaymentPolicy(s string) (OverpaymentPolicy, bool) {
	switch OverpaymentPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case OverpaymentAllow:
		return OverpaymentAllow, true
	case OverpaymentReject:
		return OverpaymentReject, true
	}
	return "", false
}

// PaymentInput is a payment as submitted, before validation.
type PaymentInput struct {
	Amount Money
	PaidOn Date
	Method string
	Notes  string
}

// Recorder validates a payment against a ledger and produces the updated
// ledger plus the payment record. It never touches storage.
type Recorder struct {
	methods  []string
	policies map[LedgerKind]OverpaymentPolicy
	now      func() time.Time
	newID    func() string
}

type RecorderOption func(*Recorder)

// WithPaymentMethods replaces the accepted method list.
func WithPaymentMethods(methods ...string) RecorderOption {
	return func(r *Recorder) {
		r.methods = nil
		for _, m := range methods {
			if m = strings.TrimSpace(m); m != "" {
				r.methods = append(r.methods, m)
			}
		}
	}
}

// WithOverpayment sets the policy for one ledger kind.
func WithOverpayment(kind LedgerKind, p OverpaymentPolicy) RecorderOption {
	return func(r *Recorder) { r.policies[kind] = p }
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func WithIDGenerator(f func() string) RecorderOption {
	return func(r *Recorder) { r.newID = f }
}

// NewRecorder builds a recorder. Bills and fines accept overpayment by
// default; event payables are capped at their remaining balance.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		methods: append([]string(nil), DefaultPaymentMethods...),
		policies: map[LedgerKind]OverpaymentPolicy{
			KindBill:  OverpaymentAllow,
			KindFine:  OverpaymentAllow,
			KindEvent: OverpaymentReject,
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Methods returns the accepted payment methods in configured order.
func (r *Recorder) Methods() []string {
	return append([]string(nil), r.methods...)
}

// Policy returns the overpayment policy applied to kind.
func (r *Recorder) Policy(kind LedgerKind) OverpaymentPolicy {
	if p, ok := r.policies[kind]; ok {
		return p
	}
	return OverpaymentReject
}

// CanonicalMethod matches name case-insensitively against the method list.
func (r *Recorder) CanonicalMethod(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, m := range r.methods {
		if strings.EqualFold(m, name) {
			return m, true
		}
	}
	return "", false
}

// RecordPayment checks in against ledger and returns the ledger with the
// payment applied together with the new payment record. The input ledger is
// not modified.
func (r *Recorder) RecordPayment(ledger *Ledger, in PaymentInput, by Actor) (Ledger, Payment, error) {
	if ledger == nil {
		return Ledger{}, Payment{}, invalid(ErrLedgerNotFound, "ledger does not exist")
	}
	if !in.Amount.IsPositive() {
		return Ledger{}, Payment{}, invalid(ErrInvalidPaymentAmount, "payment amount must be greater than zero")
	}
	method, ok := r.CanonicalMethod(in.Method)
	if !ok {
		return Ledger{}, Payment{}, invalid(ErrUnknownPaymentMethod,
			"payment method must be one of: "+strings.Join(r.methods, ", "))
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > MaxNotesLength {
		return Ledger{}, Payment{}, invalid(ErrNotesTooLong, "notes must be at most 500 characters")
	}
	if ledger.Settled() {
		return Ledger{}, Payment{}, invalid(ErrInvalidPaymentAmount, "ledger is already fully paid")
	}
	if r.Policy(ledger.Kind) == OverpaymentReject && in.Amount.Cmp(ledger.RemainingBalance()) > 0 {
		return Ledger{}, Payment{}, invalid(ErrInvalidPaymentAmount,
			"payment of "+in.Amount.String()+" exceeds remaining balance of "+ledger.RemainingBalance().String())
	}

	next, err := ledger.ApplyPayment(in.Amount)
	if err != nil {
		return Ledger{}, Payment{}, err
	}

	now := r.now()
	paidOn := in.PaidOn
	if paidOn.IsZero() {
		paidOn = DateOf(now)
	}
	p := Payment{
		ID:         r.newID(),
		LedgerID:   ledger.ID,
		Amount:     in.Amount,
		PaidOn:     paidOn,
		Method:     method,
		Notes:      notes,
		RecordedBy: by,
		CreatedAt:  now,
	}
	return next, p, nil
}
