package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/export"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm"
	"github.com/joseph-ayodele/invoice-normalizer/internal/normalize"
	"github.com/joseph-ayodele/invoice-normalizer/internal/reconcile"
	"github.com/joseph-ayodele/invoice-normalizer/internal/rulestore"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in   = flag.String("in", "", "extraction JSON file (default: stdin)")
		xlsx = flag.String("xlsx", "", "optional XLSX output path")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()

	// stdout carries the result
	logger := common.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	data, err := readInput(*in)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	raw, err := llm.DecodeRawInvoice(data, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx, _ = common.EnsureRequestID(ctx)

	registry, err := rulestore.BuildRegistry(ctx, rulestore.Config{
		Driver:      cfg.Rules.Driver,
		DSN:         cfg.Rules.DSN,
		MaxConns:    1,
		DialTimeout: 3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to load vendor rules", "error", err)
		os.Exit(1)
	}

	normalizer := normalize.NewNormalizer(registry, normalize.Config{
		RetailMarkup:  cfg.Normalize.RetailMarkup,
		MarginLowPct:  cfg.Normalize.MarginLowPct,
		MarginHighPct: cfg.Normalize.MarginHighPct,
	}, logger)

	// no extraction service offline, so a mismatch ends in needs_review
	reconciler := reconcile.NewService(logger, reconcile.Config{
		MatchTolerance: cfg.Normalize.MatchTolerance,
		RetryEnabled:   false,
	}, nil, normalizer, nil)

	out := reconciler.Reconcile(ctx, reconcile.Request{FilenameHint: *in}, raw, data)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"outcome": out.Label,
		"state":   out.State,
		"invoice": out.Invoice,
	}); err != nil {
		printError("Error: write result: %v\n", err)
		os.Exit(1)
	}

	if *xlsx != "" {
		b, err := export.NewService(logger).InvoiceXLSX(ctx, out.Invoice)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsx, b, 0o644); err != nil {
			logger.Error("write xlsx", "path", *xlsx, "error", err)
			os.Exit(1)
		}
		logger.Info("wrote xlsx", "path", *xlsx)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
