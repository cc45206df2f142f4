package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-09-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-09-15" {
		t.Fatalf("got %s", d)
	}
	if d, err := ParseDate(" "); err != nil || !d.IsEmpty() {
		t.Fatalf("blank should be empty date, got %v %v", d, err)
	}
	if _, err := ParseDate("15/09/2024"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDateOfDropsClock(t *testing.T) {
	d := DateOf(time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC))
	if !d.Equal(NewDate(2024, 3, 9).Time) {
		t.Fatalf("got %v", d)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]LedgerKind{"bill": KindBill, "Bills": KindBill, "fines": KindFine, "event": KindEvent} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseKind("rent"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestDormerValidate(t *testing.T) {
	cases := []struct {
		name   string
		dormer Dormer
		want   error
	}{
		{"ok", Dormer{Name: "Ana Reyes", Room: "204B"}, nil},
		{"ok with email", Dormer{Name: "Ana Reyes", Room: "204B", Email: "ana@example.com"}, nil},
		{"no name", Dormer{Room: "1"}, ErrEmptyName},
		{"no room", Dormer{Name: "x"}, ErrEmptyRoom},
		{"newline in name", Dormer{Name: "Ana\r\nBcc: all@example.com", Room: "1"}, ErrControlCharacter},
		{"tab in room", Dormer{Name: "Ana", Room: "2\t04"}, ErrControlCharacter},
		{"header in email", Dormer{Name: "Ana", Room: "1", Email: "ana@example.com\r\nBcc: all@example.com"}, ErrInvalidEmail},
		{"display name email", Dormer{Name: "Ana", Room: "1", Email: "Ana <ana@example.com>"}, ErrInvalidEmail},
		{"not an email", Dormer{Name: "Ana", Room: "1", Email: "ana"}, ErrInvalidEmail},
	}
	for _, tc := range cases {
		err := tc.dormer.Validate()
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: expected ok, got %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := invalid(ErrLedgerNotFound, "ledger does not exist")
	if !errors.Is(err, ErrLedgerNotFound) {
		t.Fatalf("errors.Is should see the sentinel")
	}
	if err.Error() != "ledger not found: ledger does not exist" {
		t.Fatalf("got %q", err.Error())
	}
	if ReasonOf(errors.New("boom")) != "boom" {
		t.Fatalf("plain errors should fall back to Error()")
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[string]error{
		"invalid_payment_amount": NewValidationError(ErrInvalidPaymentAmount, "x"),
		"ledger_not_found":       ErrLedgerNotFound,
		"unknown_payment_method": invalid(ErrUnknownPaymentMethod, "y"),
		"invalid_text":           invalid(ErrControlCharacter, "z"),
		"invalid_email":          ErrInvalidEmail,
		"internal":               errors.New("disk full"),
	}
	for want, err := range cases {
		if got := ErrorCode(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
	if IsValidation(errors.New("disk full")) || !IsValidation(ErrInvalidAmount) {
		t.Fatalf("IsValidation misclassified")
	}
}
