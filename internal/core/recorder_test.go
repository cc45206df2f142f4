package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 9, 20, 9, 0, 0, 0, time.UTC)

func testRecorder(opts ...RecorderOption) *Recorder {
	base := []RecorderOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "pay-1" }),
	}
	return NewRecorder(append(base, opts...)...)
}

func ledgerOf(kind LedgerKind, due, paid string, dueDate Date) *Ledger {
	return &Ledger{
		ID:         "l1",
		DormerID:   "d1",
		Kind:       kind,
		Period:     "2024-09",
		TotalDue:   MustMoney(due),
		AmountPaid: MustMoney(paid),
		DueDate:    dueDate,
	}
}

func TestRecordPaymentSettlesBill(t *testing.T) {
	r := testRecorder()
	admin := Actor{ID: "u1", Name: "Admin", Role: "admin"}
	l := ledgerOf(KindBill, "275.00", "0", NewDate(2024, 9, 30))

	next, p, err := r.RecordPayment(l, PaymentInput{Amount: MustMoney("275.00"), Method: "cash"}, admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status(fixedNow) != StatusPaid {
		t.Fatalf("expected Paid, got %s", next.Status(fixedNow))
	}
	if !next.RemainingBalance().IsZero() {
		t.Fatalf("expected zero balance, got %s", next.RemainingBalance())
	}
	if p.Method != "Cash" {
		t.Fatalf("method should be canonicalized, got %q", p.Method)
	}
	if p.ID != "pay-1" || p.LedgerID != "l1" || p.RecordedBy != admin {
		t.Fatalf("unexpected payment record %+v", p)
	}
	if !p.PaidOn.Equal(NewDate(2024, 9, 20).Time) {
		t.Fatalf("PaidOn should default to today, got %s", p.PaidOn)
	}
	if !l.AmountPaid.IsZero() {
		t.Fatalf("input ledger must not change")
	}
}

func TestPartialPaymentPastDueStaysPartial(t *testing.T) {
	l := ledgerOf(KindBill, "325.00", "200.00", NewDate(2024, 9, 1))
	if got := l.Status(fixedNow); got != StatusPartiallyPaid {
		t.Fatalf("expected Partially Paid, got %s", got)
	}
	if got := l.RemainingBalance(); got.Cents != 12500 {
		t.Fatalf("expected 125.00, got %s", got)
	}
}

func TestRecordPaymentErrors(t *testing.T) {
	cases := []struct {
		name   string
		ledger *Ledger
		in     PaymentInput
		want   error
		reason string
	}{
		{"missing ledger", nil, PaymentInput{Amount: FromCents(100), Method: "Cash"}, ErrLedgerNotFound, ""},
		{"zero amount", ledgerOf(KindBill, "100", "0", Date{}), PaymentInput{Method: "Cash"}, ErrInvalidPaymentAmount, ""},
		{"negative amount", ledgerOf(KindBill, "100", "0", Date{}), PaymentInput{Amount: FromCents(-500), Method: "Cash"}, ErrInvalidPaymentAmount, ""},
		{"unknown method", ledgerOf(KindBill, "100", "0", Date{}), PaymentInput{Amount: FromCents(100), Method: "Bitcoin"}, ErrUnknownPaymentMethod, "payment method must be one of"},
		{"event over cap", ledgerOf(KindEvent, "500.00", "0", Date{}), PaymentInput{Amount: MustMoney("600.00"), Method: "GCash"}, ErrInvalidPaymentAmount, "exceeds remaining balance"},
		{"already settled", ledgerOf(KindBill, "100", "100", Date{}), PaymentInput{Amount: FromCents(1), Method: "Cash"}, ErrInvalidPaymentAmount, "already fully paid"},
		{"wrapping amount", ledgerOf(KindBill, "1.00", "0.50", Date{}), PaymentInput{Amount: FromCents(1<<63 - 1), Method: "Cash"}, ErrInvalidPaymentAmount, "amount paid past"},
		{"long notes", ledgerOf(KindBill, "100", "0", Date{}), PaymentInput{Amount: FromCents(1), Method: "Cash", Notes: strings.Repeat("x", 501)}, ErrNotesTooLong, ""},
	}
	r := testRecorder()
	for _, tc := range cases {
		_, _, err := r.RecordPayment(tc.ledger, tc.in, Actor{})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if tc.reason != "" && !strings.Contains(ReasonOf(err), tc.reason) {
			t.Fatalf("%s: reason %q does not mention %q", tc.name, ReasonOf(err), tc.reason)
		}
	}
}

func TestRecordPaymentOverpaymentPolicy(t *testing.T) {
	in := PaymentInput{Amount: MustMoney("150"), Method: "Cash"}

	next, _, err := testRecorder().RecordPayment(ledgerOf(KindBill, "100", "20", Date{}), in, Actor{})
	if err != nil {
		t.Fatalf("bills accept overpayment by default: %v", err)
	}
	if !next.Overpaid() || next.AmountPaid.Cents != 17000 {
		t.Fatalf("expected overpaid ledger with 170.00 paid, got %s", next.AmountPaid)
	}

	strict := testRecorder(WithOverpayment(KindBill, OverpaymentReject))
	if _, _, err := strict.RecordPayment(ledgerOf(KindBill, "100", "20", Date{}), in, Actor{}); !errors.Is(err, ErrInvalidPaymentAmount) {
		t.Fatalf("expected rejection under reject policy, got %v", err)
	}

	exact := PaymentInput{Amount: MustMoney("500"), Method: "Cash"}
	if _, _, err := testRecorder().RecordPayment(ledgerOf(KindEvent, "500", "0", Date{}), exact, Actor{}); err != nil {
		t.Fatalf("paying exactly the remaining event balance should pass: %v", err)
	}
}

func TestRecorderCustomMethods(t *testing.T) {
	r := testRecorder(WithPaymentMethods("Cash", " ", "Check"))
	if got := r.Methods(); len(got) != 2 || got[1] != "Check" {
		t.Fatalf("unexpected methods %v", got)
	}
	if _, ok := r.CanonicalMethod("gcash"); ok {
		t.Fatalf("GCash should not be accepted once methods are replaced")
	}
}

func TestParseOverpaymentPolicy(t *testing.T) {
	if p, ok := ParseOverpaymentPolicy(" Reject "); !ok || p != OverpaymentReject {
		t.Fatalf("got %q %v", p, ok)
	}
	if _, ok := ParseOverpaymentPolicy("cap"); ok {
		t.Fatalf("unknown policy accepted")
	}
}
