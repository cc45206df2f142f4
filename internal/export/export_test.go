package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"dormbill/internal/core"
	"dormbill/internal/services"
)

var asOf = time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)

func ledger(id string, kind core.LedgerKind, due, paid string, dueDate core.Date) core.Ledger {
	return core.Ledger{
		ID:         id,
		DormerID:   "d-1",
		Kind:       kind,
		Period:     "2024-09",
		TotalDue:   core.MustMoney(due),
		AmountPaid: core.MustMoney(paid),
		DueDate:    dueDate,
	}
}

func sampleSummary() services.DormerSummary {
	bills := []core.Ledger{ledger("b-1", core.KindBill, "1000.00", "400.00", core.Date{})}
	fines := []core.Ledger{ledger("f-1", core.KindFine, "50.00", "0", core.NewDate(2024, 9, 10))}
	events := []core.Ledger{ledger("e-1", core.KindEvent, "200.00", "200.00", core.Date{})}
	ds := services.DormerSummary{
		Dormer: core.Dormer{ID: "d-1", Name: "Ana Cruz", Room: "204"},
		Bills:  core.Summarize(bills, asOf),
		Fines:  core.Summarize(fines, asOf),
		Events: core.Summarize(events, asOf),
		AsOf:   asOf,
	}
	ds.Total = core.Merge(ds.Bills, ds.Fines, ds.Events)
	return ds
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows([]services.DormerSummary{sampleSummary()})
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if len(row) != len(SummaryHeader) {
			t.Fatalf("row width %d does not match header width %d", len(row), len(SummaryHeader))
		}
	}

	bill := rows[0]
	if bill[0] != "2024-09-20" || bill[4] != "bill" || bill[6] != "1000.00" || bill[8] != "600.00" || bill[9] != "40.00" {
		t.Fatalf("unexpected bill row: %v", bill)
	}
	if fine := rows[1]; fine[12] != "1" {
		t.Fatalf("expected one overdue fine, got %v", fine)
	}
	total := rows[3]
	if total[4] != "total" || total[6] != "1250.00" || total[7] != "600.00" || total[9] != "48.00" {
		t.Fatalf("unexpected total row: %v", total)
	}
}

func TestLedgerRows(t *testing.T) {
	rows := LedgerRows([]core.Ledger{
		ledger("b-1", core.KindBill, "500.00", "600.00", core.Date{}),
		ledger("f-1", core.KindFine, "50.00", "0", core.NewDate(2024, 9, 10)),
	}, asOf)

	if got := rows[0]; got[7] != "0.00" || got[8] != "Paid" || got[9] != "true" {
		t.Fatalf("overpaid ledger row: %v", got)
	}
	if got := rows[1]; got[4] != "2024-09-10" || got[8] != "Overdue" || got[9] != "false" {
		t.Fatalf("overdue ledger row: %v", got)
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	rows := LedgerRows([]core.Ledger{ledger("b-1", core.KindBill, "1000.00", "0", core.Date{})}, asOf)
	rows[0][3] = `Rent, "September"`

	if err := NewCSVWriter(&buf).WriteRows(context.Background(), LedgerHeader, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	if records[0][0] != "Ledger ID" || records[1][3] != `Rent, "September"` {
		t.Fatalf("unexpected records: %v", records)
	}
}

type stubSource struct {
	summaries []services.DormerSummary
	err       error
}

func (s stubSource) SummarizeAll(context.Context) ([]services.DormerSummary, error) {
	return s.summaries, s.err
}

type recordingWriter struct {
	header []string
	rows   [][]string
}

func (w *recordingWriter) WriteRows(_ context.Context, header []string, rows [][]string) error {
	w.header, w.rows = header, rows
	return nil
}

func TestExporter(t *testing.T) {
	w := &recordingWriter{}
	n, err := NewExporter(stubSource{summaries: []services.DormerSummary{sampleSummary()}}).Export(context.Background(), w)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 4 || len(w.rows) != 4 || w.header[0] != "As Of" {
		t.Fatalf("unexpected export: n=%d rows=%d header=%v", n, len(w.rows), w.header)
	}

	_, err = NewExporter(stubSource{err: errors.New("db gone")}).Export(context.Background(), w)
	if err == nil || !strings.Contains(err.Error(), "db gone") {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Summary", "2024 Summary"},
		{"  Summary ", "2024 Summary"},
		{"2023 Summary", "2023 Summary"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, 2024); got != tt.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

// fakeSheets serves the two Values endpoints the writer uses.
type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		resp := map[string]any{"majorDimension": "ROWS"}
		if len(f.appended) > 0 {
			resp["values"] = [][]any{f.appended[0][:1]}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
			http.Error(w, `{"error":{"code":400,"message":"bad option"}}`, http.StatusBadRequest)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":{"code":400,"message":"bad body"}}`, http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	default:
		http.NotFound(w, r)
	}
}

func TestSheetsWriter_AppendsHeaderOnce(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	w, err := NewSheetsWriter(ctx, SheetsConfig{SpreadsheetID: "sheet-1", SheetName: "2024 Summary"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if w.SheetName() != "2024 Summary" {
		t.Fatalf("unexpected sheet name %q", w.SheetName())
	}

	rows := SummaryRows([]services.DormerSummary{sampleSummary()})
	if err := w.WriteRows(ctx, SummaryHeader, rows); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.WriteRows(ctx, SummaryHeader, rows); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if len(fake.appended) != 1+2*len(rows) {
		t.Fatalf("expected header once plus %d rows, got %d", 2*len(rows), len(fake.appended))
	}
	if fake.appended[0][0] != "As Of" || fake.appended[1][0] != "2024-09-20" {
		t.Fatalf("unexpected first rows: %v / %v", fake.appended[0], fake.appended[1])
	}
}

func TestNewSheetsWriter_MissingConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	ctx := context.Background()
	if _, err := NewSheetsWriter(ctx, SheetsConfig{}, nil); err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	_, err := NewSheetsWriter(ctx, SheetsConfig{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}
