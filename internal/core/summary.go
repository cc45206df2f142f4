package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates a set of ledgers for display and export.
type Summary struct {
	TotalDue        Money
	TotalPaid       Money
	TotalBalance    Money
	ProgressPercent decimal.Decimal
	Count           int
	Overpaid        int
	ByStatus        map[Status]int
}

// Summarize folds ledgers into a Summary. TotalBalance sums the clamped
// per-ledger balances, so an overpaid ledger never offsets another one.
// ProgressPercent is rounded to two places and kept within [0, 100].
func Summarize(ledgers []Ledger, today time.Time) Summary {
	s := Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, l := range ledgers {
		s.TotalDue = s.TotalDue.Add(l.TotalDue)
		s.TotalPaid = s.TotalPaid.Add(l.AmountPaid)
		s.TotalBalance = s.TotalBalance.Add(l.RemainingBalance())
		s.ByStatus[l.Status(today)]++
		if l.Overpaid() {
			s.Overpaid++
		}
	}
	s.Count = len(ledgers)
	s.ProgressPercent = Progress(s.TotalPaid, s.TotalDue)
	return s
}

// Progress returns paid/due as a percentage in [0, 100], or 0 when nothing is due.
func Progress(paid, due Money) decimal.Decimal {
	if due.Cents <= 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(paid.Cents).
		Mul(hundred).
		DivRound(decimal.NewFromInt(due.Cents), 2)
	if pct.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// Merge combines summaries computed over disjoint ledger sets.
func Merge(parts ...Summary) Summary {
	out := Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, p := range parts {
		out.TotalDue = out.TotalDue.Add(p.TotalDue)
		out.TotalPaid = out.TotalPaid.Add(p.TotalPaid)
		out.TotalBalance = out.TotalBalance.Add(p.TotalBalance)
		out.Count += p.Count
		out.Overpaid += p.Overpaid
		for st, n := range p.ByStatus {
			out.ByStatus[st] += n
		}
	}
	out.ProgressPercent = Progress(out.TotalPaid, out.TotalDue)
	return out
}
