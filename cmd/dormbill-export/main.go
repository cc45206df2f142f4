package main

import (
	"context"
	"flag"
	"os"
	"time"

	"dormbill/internal/cache"
	"dormbill/internal/cli"
	"dormbill/internal/export"
	"dormbill/internal/log"
	"dormbill/internal/services"
)

func main() {
	toSheets := flag.Bool("sheets", false, "append the report to Google Sheets instead of writing CSV to stdout")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	// stdout carries the CSV report, so logs go to stderr.
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentExport,
		Output:    os.Stderr,
	})

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	summaries := services.NewSummaryService(store, cache.NewLRUCache[services.DormerSummary](1, 0), nil, logger)
	exporter := export.NewExporter(summaries)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var w export.RowWriter = export.NewCSVWriter(os.Stdout)
	if *toSheets {
		if !cfg.SheetsEnabled() {
			logger.Error("GOOGLE_SPREADSHEET_ID is required for -sheets")
			os.Exit(1)
		}
		sw, err := export.NewSheetsWriter(ctx, export.SheetsConfig{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets writer", log.FieldError, err)
			os.Exit(1)
		}
		w = sw
	}

	n, err := exporter.Export(ctx, w)
	if err != nil {
		logger.Error("Export failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Export complete", log.FieldCount, n, "sheets", *toSheets)
}
