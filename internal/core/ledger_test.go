package core

import (
	"errors"
	"testing"
	"time"
)

func newBill(t *testing.T, due string) Ledger {
	t.Helper()
	l, err := NewLedger(LedgerSpec{ID: "l1", DormerID: "d1", Kind: KindBill, Period: "2024-09", TotalDue: MustMoney(due)})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestNewLedger(t *testing.T) {
	l := newBill(t, "500")
	if !l.AmountPaid.IsZero() {
		t.Fatalf("new ledger should start unpaid, got %s", l.AmountPaid)
	}

	cases := []struct {
		name string
		spec LedgerSpec
		want error
	}{
		{"zero total", LedgerSpec{DormerID: "d", Period: "p"}, ErrInvalidAmount},
		{"no dormer", LedgerSpec{Period: "p", TotalDue: FromCents(1)}, ErrEmptyDormer},
		{"no period", LedgerSpec{DormerID: "d", TotalDue: FromCents(1)}, ErrEmptyPeriod},
		{"bad kind", LedgerSpec{DormerID: "d", Period: "p", Kind: "rent", TotalDue: FromCents(1)}, ErrInvalidKind},
		{"total over max", LedgerSpec{DormerID: "d", Period: "p", TotalDue: FromCents(MaxCents + 1)}, ErrInvalidAmount},
		{"newline in period", LedgerSpec{DormerID: "d", Period: "2024-09\r\nBcc: all@example.com", TotalDue: FromCents(1)}, ErrControlCharacter},
		{"newline in description", LedgerSpec{DormerID: "d", Period: "p", Description: "rent\nextra", TotalDue: FromCents(1)}, ErrControlCharacter},
	}
	for _, tc := range cases {
		if _, err := NewLedger(tc.spec); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRemainingBalanceNeverNegative(t *testing.T) {
	for _, paid := range []int64{0, 100, 49999, 50000, 50001, 90000} {
		l := newBill(t, "500")
		l.AmountPaid = FromCents(paid)
		want := int64(50000) - paid
		if want < 0 {
			want = 0
		}
		if got := l.RemainingBalance(); got.Cents != want {
			t.Fatalf("paid %d: expected %d, got %d", paid, want, got.Cents)
		}
	}
}

func TestApplyPaymentOrderIndependent(t *testing.T) {
	l := newBill(t, "100")
	a, _ := l.ApplyPayment(MustMoney("40"))
	a, _ = a.ApplyPayment(MustMoney("60"))
	b, _ := l.ApplyPayment(MustMoney("60"))
	b, _ = b.ApplyPayment(MustMoney("40"))
	if a.AmountPaid != b.AmountPaid || a.AmountPaid.Cents != 10000 {
		t.Fatalf("expected 100.00 either way, got %s and %s", a.AmountPaid, b.AmountPaid)
	}
	if !l.AmountPaid.IsZero() {
		t.Fatalf("ApplyPayment must not mutate the receiver")
	}
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	l := newBill(t, "100")
	for _, c := range []int64{0, -1} {
		if _, err := l.ApplyPayment(FromCents(c)); !errors.Is(err, ErrInvalidPaymentAmount) {
			t.Fatalf("%d: expected ErrInvalidPaymentAmount, got %v", c, err)
		}
	}
}

func TestApplyPaymentRejectsOverflow(t *testing.T) {
	cases := []struct {
		name   string
		paid   int64
		amount int64
	}{
		{"amount over max", 0, MaxCents + 1},
		{"int64 wrap", 50, 1<<63 - 1},
		{"running total over max", MaxCents - 10, 11},
	}
	for _, tc := range cases {
		l := newBill(t, "1.00")
		l.AmountPaid = FromCents(tc.paid)
		got, err := l.ApplyPayment(FromCents(tc.amount))
		if !errors.Is(err, ErrInvalidPaymentAmount) {
			t.Fatalf("%s: expected ErrInvalidPaymentAmount, got %v", tc.name, err)
		}
		if got.AmountPaid.Cents != tc.paid {
			t.Fatalf("%s: amount paid changed to %d", tc.name, got.AmountPaid.Cents)
		}
	}

	l := newBill(t, "1.00")
	l.AmountPaid = FromCents(MaxCents - 10)
	if next, err := l.ApplyPayment(FromCents(10)); err != nil || next.AmountPaid.Cents != MaxCents {
		t.Fatalf("payment reaching the max exactly should pass: %v", err)
	}
}

func TestLedgerOverpaid(t *testing.T) {
	l := newBill(t, "100")
	l, _ = l.ApplyPayment(MustMoney("120"))
	if !l.Overpaid() || !l.Settled() {
		t.Fatalf("expected overpaid and settled")
	}
	if l.Status(time.Now()) != StatusPaid {
		t.Fatalf("overpaid ledger should be Paid")
	}
}
