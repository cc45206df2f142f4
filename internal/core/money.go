// Package core holds the billing engine: money, ledgers, payment recording,
// status classification and summary aggregation.
//
// Everything in this package is pure. Persistence, notification and export
// live behind interfaces in other packages.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol prefixes rendered amounts unless Format is given another.
const DefaultCurrencySymbol = "₱"

// Money is an exact amount in cents. Values built by ParseMoney are never
// negative; Sub may return a negative delta.
type Money struct {
	Cents int64
}

// MaxCents bounds every amount and every running ledger total.
const MaxCents int64 = 1_000_000_000_000

var (
	hundred  = decimal.NewFromInt(100)
	maxMoney = decimal.New(MaxCents, -2)
)

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) separators and at most two
// fractional digits. Signs, exponents, extra precision and anything
// non-numeric fail with ErrInvalidAmount. Zero is accepted.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,3")   -> 1230 cents
//	ParseMoney("12.345") -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, invalid(ErrInvalidAmount, "amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, invalid(ErrInvalidAmount, "amount must not be signed")
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return Money{}, invalid(ErrInvalidAmount, "amount must be a number")
	}
	if intPart == "" && (!hasDot || fracPart == "") {
		return Money{}, invalid(ErrInvalidAmount, "amount must be a number")
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return Money{}, invalid(ErrInvalidAmount, "amount must be a number")
		}
	}
	if len(fracPart) > 2 {
		return Money{}, invalid(ErrInvalidAmount, "amount has more than two decimal places")
	}
	if intPart == "" {
		intPart = "0"
	}
	d, err := decimal.NewFromString(intPart + "." + fracPart + "0")
	if err != nil {
		return Money{}, invalid(ErrInvalidAmount, "amount must be a number")
	}
	if d.GreaterThan(maxMoney) {
		return Money{}, invalid(ErrInvalidAmount, "amount is too large")
	}
	return Money{Cents: d.Mul(hundred).IntPart()}, nil
}

// MustMoney is ParseMoney for literals known to be valid.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core.MustMoney(%q): %v", s, err))
	}
	return m
}

func FromCents(c int64) Money { return Money{Cents: c} }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.Cents < o.Cents:
		return -1
	case m.Cents > o.Cents:
		return 1
	}
	return 0
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }

// Validate rejects non-positive amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Plain renders the amount without a symbol or grouping, e.g. "1234.50".
func (m Money) Plain() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) String() string {
	return m.Format(DefaultCurrencySymbol)
}

// Format renders the amount as symbol, grouped major units and exactly two
// fractional digits: ₱1,234.50. Negative deltas get a leading minus.
func (m Money) Format(symbol string) string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, humanize.Comma(c/100), c%100)
}
