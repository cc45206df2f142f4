// Package export turns dormer summaries and ledgers into tabular reports.
package export

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/services"
)

// RowWriter is a report sink.
type RowWriter interface {
	WriteRows(ctx context.Context, header []string, rows [][]string) error
}

// SummaryHeader is the column layout of the summary report.
var SummaryHeader = []string{
	"As Of", "Dormer ID", "Dormer", "Room", "Kind", "Ledgers",
	"Total Due", "Total Paid", "Balance", "Progress %",
	"Unpaid", "Partially Paid", "Overdue", "Paid", "Overpaid",
}

// LedgerHeader is the column layout of a dormer's ledger report.
var LedgerHeader = []string{
	"Ledger ID", "Kind", "Period", "Description", "Due Date",
	"Total Due", "Amount Paid", "Balance", "Status", "Overpaid",
}

// SummaryRows renders one row per ledger kind plus a total row per dormer.
// Amounts are plain decimals so spreadsheets read them as numbers.
func SummaryRows(summaries []services.DormerSummary) [][]string {
	rows := make([][]string, 0, len(summaries)*4)
	for _, ds := range summaries {
		asOf := ds.AsOf.Format(time.DateOnly)
		parts := []struct {
			label string
			sum   core.Summary
		}{
			{string(core.KindBill), ds.Bills},
			{string(core.KindFine), ds.Fines},
			{string(core.KindEvent), ds.Events},
			{"total", ds.Total},
		}
		for _, p := range parts {
			rows = append(rows, []string{
				asOf,
				ds.Dormer.ID,
				ds.Dormer.Name,
				ds.Dormer.Room,
				p.label,
				strconv.Itoa(p.sum.Count),
				p.sum.TotalDue.Plain(),
				p.sum.TotalPaid.Plain(),
				p.sum.TotalBalance.Plain(),
				p.sum.ProgressPercent.StringFixed(2),
				strconv.Itoa(p.sum.ByStatus[core.StatusUnpaid]),
				strconv.Itoa(p.sum.ByStatus[core.StatusPartiallyPaid]),
				strconv.Itoa(p.sum.ByStatus[core.StatusOverdue]),
				strconv.Itoa(p.sum.ByStatus[core.StatusPaid]),
				strconv.Itoa(p.sum.Overpaid),
			})
		}
	}
	return rows
}

// LedgerRows renders ledgers with their status as of today.
func LedgerRows(ledgers []core.Ledger, today time.Time) [][]string {
	rows := make([][]string, 0, len(ledgers))
	for _, l := range ledgers {
		rows = append(rows, []string{
			l.ID,
			string(l.Kind),
			l.Period,
			l.Description,
			l.DueDate.String(),
			l.TotalDue.Plain(),
			l.AmountPaid.Plain(),
			l.RemainingBalance().Plain(),
			string(l.Status(today)),
			strconv.FormatBool(l.Overpaid()),
		})
	}
	return rows
}

// SummarySource yields summaries for every dormer.
type SummarySource interface {
	SummarizeAll(ctx context.Context) ([]services.DormerSummary, error)
}

// Exporter writes the all-dormer summary report to a RowWriter.
type Exporter struct {
	source SummarySource
}

func NewExporter(source SummarySource) *Exporter {
	return &Exporter{source: source}
}

// Export writes the report and returns the number of data rows.
func (e *Exporter) Export(ctx context.Context, w RowWriter) (int, error) {
	summaries, err := e.source.SummarizeAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("summarize: %w", err)
	}
	rows := SummaryRows(summaries)
	if err := w.WriteRows(ctx, SummaryHeader, rows); err != nil {
		return 0, fmt.Errorf("write report: %w", err)
	}
	return len(rows), nil
}
