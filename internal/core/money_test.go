package core

import (
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{".5", 50, true},
		{"12.", 1200, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"275.00", 27500, true},
		{"1.005", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1e3", 0, false},
		{"1.2.3", 0, false},
		{".", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
		{"10000000000.00", MaxCents, true},
		{"10000000000.01", 0, false},
		{"92233720368547758.07", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseMoneyReason(t *testing.T) {
	_, err := ParseMoney("1.234")
	if got := ReasonOf(err); got != "amount has more than two decimal places" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		m    Money
		want string
	}{
		{FromCents(0), "₱0.00"},
		{FromCents(5), "₱0.05"},
		{FromCents(27500), "₱275.00"},
		{FromCents(123456789), "₱1,234,567.89"},
		{FromCents(-1250), "-₱12.50"},
	}
	for _, tc := range cases {
		if got := tc.m.String(); got != tc.want {
			t.Fatalf("%d: expected %q, got %q", tc.m.Cents, tc.want, got)
		}
	}
	if got := FromCents(150).Format("PHP "); got != "PHP 1.50" {
		t.Fatalf("custom symbol: got %q", got)
	}
	if got := FromCents(123450).Plain(); got != "1234.50" {
		t.Fatalf("plain: got %q", got)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a, b := MustMoney("0.10"), MustMoney("0.20")
	if got := a.Add(b); got.Cents != 30 {
		t.Fatalf("0.10+0.20 expected 30 cents, got %d", got.Cents)
	}
	if got := a.Sub(b); got.Cents != -10 {
		t.Fatalf("0.10-0.20 expected -10 cents, got %d", got.Cents)
	}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Fatalf("Cmp ordering broken")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}
