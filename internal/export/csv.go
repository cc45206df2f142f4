package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes reports as RFC 4180 CSV.
type CSVWriter struct {
	w io.Writer
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

func (c *CSVWriter) WriteRows(_ context.Context, header []string, rows [][]string) error {
	cw := csv.NewWriter(c.w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
