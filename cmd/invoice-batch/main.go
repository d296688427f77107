package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/async"
	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-normalizer/internal/metrics"
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

type fileResult struct {
	Source    string          `json:"source"`
	RequestID string          `json:"requestId"`
	Outcome   string          `json:"outcome,omitempty"`
	State     string          `json:"state,omitempty"`
	Retried   bool            `json:"retried"`
	ElapsedMs int64           `json:"elapsedMs"`
	Error     string          `json:"error,omitempty"`
	Invoice   json.RawMessage `json:"invoice,omitempty"`
}

func main() {
	var (
		dir = flag.String("dir", "", "directory of invoice images (required)")
		out = flag.String("out", "", "output directory for JSON results (defaults to <dir>/normalized)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "normalized")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		printError("Error: create output dir: %v\n", err)
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx := context.Background()

	registry, err := rulestore.BuildRegistry(ctx, rulestore.Config{
		Driver:      cfg.Rules.Driver,
		DSN:         cfg.Rules.DSN,
		MaxConns:    2,
		DialTimeout: 3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to load vendor rules", "error", err)
		os.Exit(1)
	}

	mreg := metrics.NewRegistry()
	normalizer := normalize.NewNormalizer(registry, normalize.Config{
		RetailMarkup:  cfg.Normalize.RetailMarkup,
		MarginLowPct:  cfg.Normalize.MarginLowPct,
		MarginHighPct: cfg.Normalize.MarginHighPct,
	}, logger)
	client := openai.NewClient(openai.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)
	reconciler := reconcile.NewService(logger, reconcile.Config{
		MatchTolerance: cfg.Normalize.MatchTolerance,
		RetryEnabled:   cfg.Normalize.RetryEnabled,
	}, client, normalizer, mreg)

	files, err := listImages(*dir)
	if err != nil {
		logger.Error("failed to list images", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.Warn("no images found", "dir", *dir)
		return
	}

	var (
		mu       sync.Mutex
		counts   = map[string]int{}
		failures int
	)
	q := async.NewProcessorQueue(reconciler, logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
		async.WithResultHandler(func(r async.Result) {
			if err := writeResult(*out, r); err != nil {
				logger.Error("failed to write result", "source", r.Job.ID, "error", err)
			}
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failures++
				return
			}
			counts[r.Outcome.Label]++
		}),
	)

	start := time.Now()
	for _, path := range files {
		req, err := imageRequest(path, cfg.Server.MaxImageMB)
		if err != nil {
			logger.Warn("skipping file", "path", path, "error", err)
			continue
		}
		job := async.Job{ID: path, Request: req, TraceID: uuid.NewString()}
		if err := q.Enqueue(ctx, job); err != nil {
			logger.Error("enqueue failed", "path", path, "error", err)
		}
	}

	// drain: every queued image gets a result file before exit
	q.Shutdown(ctx)

	logger.Info("batch complete",
		"files", len(files),
		"matched", counts[reconcile.OutcomeMatched],
		"needs_review", counts[reconcile.OutcomeNeedsReview],
		"retry_failed", counts[reconcile.OutcomeRetryFailed],
		"no_total", counts[reconcile.OutcomeNoTotal],
		"failed", failures,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if failures > 0 {
		os.Exit(1)
	}
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := constants.ImageMimeType(filepath.Ext(e.Name())); ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func imageRequest(path string, maxImageMB int) (reconcile.Request, error) {
	if maxImageMB <= 0 {
		maxImageMB = constants.MaxImageMBDefault
	}
	info, err := os.Stat(path)
	if err != nil {
		return reconcile.Request{}, err
	}
	if info.Size() > int64(maxImageMB)<<20 {
		return reconcile.Request{}, fmt.Errorf("image exceeds %d MB", maxImageMB)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return reconcile.Request{}, fmt.Errorf("read %s: %w", path, err)
	}
	mimeType, _ := constants.ImageMimeType(filepath.Ext(path))
	return reconcile.Request{
		ImageBase64:  base64.StdEncoding.EncodeToString(b),
		MimeType:     mimeType,
		FilenameHint: filepath.Base(path),
	}, nil
}

func writeResult(outDir string, r async.Result) error {
	res := fileResult{
		Source:    filepath.Base(r.Job.ID),
		RequestID: r.Job.TraceID,
		Retried:   r.Outcome.Retried,
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		res.Error = r.Err.Error()
	} else {
		res.Outcome = r.Outcome.Label
		res.State = string(r.Outcome.State)
		inv, err := json.Marshal(r.Outcome.Invoice)
		if err != nil {
			return fmt.Errorf("marshal invoice: %w", err)
		}
		res.Invoice = inv
	}

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(r.Job.ID), filepath.Ext(r.Job.ID)) + ".json"
	return os.WriteFile(filepath.Join(outDir, name), b, 0o644)
}
