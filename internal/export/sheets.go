package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dormbill/internal/log"
)

// SheetsConfig selects the spreadsheet and the service account used to write it.
type SheetsConfig struct {
	SpreadsheetID string
	// SheetName is the base tab name; the report year is prefixed to it.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// SheetsWriter appends report rows to a Google Sheet tab, writing the
// header first when the tab is empty.
type SheetsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ RowWriter = (*SheetsWriter)(nil)

// NewSheetsWriter authenticates with service account credentials. The
// current year is prefixed to the tab name.
func NewSheetsWriter(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...goption.ClientOption) (*SheetsWriter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentExport)

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := cfg.SheetName
	if strings.TrimSpace(base) == "" {
		base = "Summary"
	}
	name := yearPrefixedName(base, time.Now().Year())
	logger.InfoContext(ctx, "Google Sheets writer ready", "sheet", name)

	return &SheetsWriter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		logger:        logger,
	}, nil
}

// credentials prefers inline JSON, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg SheetsConfig) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// SheetName returns the tab the writer appends to.
func (s *SheetsWriter) SheetName() string { return s.sheetName }

func (s *SheetsWriter) WriteRows(ctx context.Context, header []string, rows [][]string) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A1:A1", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	values := toValues(rows)
	if len(resp.Values) == 0 {
		values = append(toValues([][]string{header}), values...)
	}
	if len(values) == 0 {
		return nil
	}

	target := fmt.Sprintf("%s!A1", s.sheetName)
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, target, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", s.sheetName, err)
	}

	s.logger.InfoContext(ctx, "Report appended to sheet",
		"sheet", s.sheetName,
		log.FieldCount, len(values))
	return nil
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
