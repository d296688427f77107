package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm"
	"github.com/joseph-ayodele/invoice-normalizer/internal/metrics"
	"github.com/joseph-ayodele/invoice-normalizer/internal/normalize"
	"github.com/joseph-ayodele/invoice-normalizer/internal/sanitize"
)

// Outcome labels used for logging and metrics.
const (
	OutcomeMatched     = "matched"
	OutcomeNoTotal     = "no_total"
	OutcomeNeedsReview = "needs_review"
	OutcomeRetryFailed = "retry_failed"
)

const defaultMatchTolerance = 0.05

// Config controls the printed-total check.
type Config struct {
	MatchTolerance float64 // default 0.05
	RetryEnabled   bool    // offline runs have no collaborator to retry against
}

// Request is one invoice image to extract and reconcile.
type Request struct {
	ImageBase64  string
	MimeType     string
	FilenameHint string
}

// Outcome is the final result plus the states the machine went through.
type Outcome struct {
	Invoice entity.Invoice
	State   constants.ReconcileState
	Trace   []constants.ReconcileState
	Retried bool
	Label   string
}

func (o *Outcome) enter(s constants.ReconcileState) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

type Service struct {
	Logger     *slog.Logger
	Cfg        Config
	Extractor  llm.InvoiceExtractor
	Normalizer *normalize.Normalizer
	Metrics    *metrics.Registry // optional
}

func NewService(logger *slog.Logger, cfg Config, extractor llm.InvoiceExtractor, n *normalize.Normalizer, m *metrics.Registry) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MatchTolerance <= 0 {
		cfg.MatchTolerance = defaultMatchTolerance
	}
	if n == nil {
		n = normalize.NewNormalizer(nil, normalize.Config{}, logger)
	}
	return &Service{Logger: logger, Cfg: cfg, Extractor: extractor, Normalizer: n, Metrics: m}
}

// Process runs the initial extraction and reconciles the result. Only a missing image
// or a failed initial extraction is an error; everything after that degrades to warnings.
func (s *Service) Process(ctx context.Context, req Request) (Outcome, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	if strings.TrimSpace(req.ImageBase64) == "" {
		return Outcome{}, common.MissingInput("image data is required")
	}
	if s.Extractor == nil {
		return Outcome{}, common.ExtractionFailure("no extractor configured", errors.New("nil extractor"))
	}

	s.Logger.Info("reconcile.extract.start", "req_id", rid, "file", req.FilenameHint)
	first, firstJSON, err := s.extract(ctx, llm.ExtractRequest{
		ImageBase64:  req.ImageBase64,
		MimeType:     req.MimeType,
		FilenameHint: req.FilenameHint,
	})
	if err != nil {
		s.Logger.Error("reconcile.extract.error", "req_id", rid, "error", err)
		if errors.Is(err, common.ErrMissingInput) {
			return Outcome{}, err
		}
		if s.Metrics != nil {
			s.Metrics.ExtractionFailures.Inc()
		}
		return Outcome{}, common.ExtractionFailure("initial extraction failed", err)
	}
	return s.Reconcile(ctx, req, first, firstJSON), nil
}

// Reconcile normalizes an extracted invoice and checks it against the printed total,
// issuing at most one corrective extraction. It never fails.
func (s *Service) Reconcile(ctx context.Context, req Request, first entity.RawInvoice, firstJSON []byte) Outcome {
	rid := common.RequestIDFromContext(ctx)
	var out Outcome
	out.enter(constants.StateUnverified)

	inv := s.Normalizer.Normalize(ctx, first)

	if inv.InvoiceTotal == nil {
		inv.TotalMatches = false
		inv.AddWarning(constants.WarnInvoiceTotalMissing)
		return s.finish(ctx, out, inv, OutcomeNoTotal)
	}

	if s.matches(inv) {
		inv.TotalMatches = true
		out.enter(constants.StateVerified)
		return s.finish(ctx, out, inv, OutcomeMatched)
	}

	if !s.Cfg.RetryEnabled || s.Extractor == nil {
		inv.AddWarning(constants.WarnTotalMismatch)
		return s.finish(ctx, out, inv, OutcomeNeedsReview)
	}

	out.enter(constants.StateRetryPending)
	out.Retried = true
	if s.Metrics != nil {
		s.Metrics.Retries.Inc()
	}
	s.Logger.Info("reconcile.retry.start",
		"req_id", rid,
		"printed_total", *inv.InvoiceTotal,
		"computed_total", inv.GrandTotal,
	)

	raw, _, err := s.extract(ctx, llm.ExtractRequest{
		ImageBase64:  req.ImageBase64,
		MimeType:     req.MimeType,
		FilenameHint: req.FilenameHint,
		Correction: &llm.CorrectionHint{
			PrintedTotal:  *inv.InvoiceTotal,
			ComputedTotal: inv.GrandTotal,
			PreviousJSON:  firstJSON,
		},
	})
	if err != nil {
		s.Logger.Warn("reconcile.retry.failed", "req_id", rid, "error", err)
		if s.Metrics != nil {
			s.Metrics.RetryFailures.Inc()
		}
		inv.AddWarning(constants.WarnTotalMismatch)
		inv.AddWarning(constants.WarnRetryFailed)
		return s.finish(ctx, out, inv, OutcomeRetryFailed)
	}

	second := s.Normalizer.Normalize(ctx, raw)
	if second.InvoiceTotal == nil {
		printed := *inv.InvoiceTotal
		second.InvoiceTotal = &printed
	}
	if s.matches(second) {
		second.TotalMatches = true
		return s.finish(ctx, out, second, OutcomeMatched)
	}
	second.AddWarning(constants.WarnTotalMismatch)
	return s.finish(ctx, out, second, OutcomeNeedsReview)
}

func (s *Service) matches(inv entity.Invoice) bool {
	if inv.InvoiceTotal == nil {
		return false
	}
	return sanitize.WithinCents(inv.GrandTotal, *inv.InvoiceTotal, s.Cfg.MatchTolerance)
}

func (s *Service) extract(ctx context.Context, req llm.ExtractRequest) (entity.RawInvoice, []byte, error) {
	start := time.Now()
	raw, js, err := s.Extractor.ExtractInvoice(ctx, req)
	if s.Metrics != nil {
		s.Metrics.ExtractLatencySec.Observe(time.Since(start).Seconds())
	}
	return raw, js, err
}

func (s *Service) finish(ctx context.Context, out Outcome, inv entity.Invoice, label string) Outcome {
	out.enter(constants.StateFinal)
	out.Invoice = inv
	out.Label = label

	corrected := 0
	for _, it := range inv.Items {
		if entity.HasWarning(it.Warnings, constants.WarnQtyCorrected) {
			corrected++
		}
	}
	if s.Metrics != nil {
		s.Metrics.Processed.WithLabelValues(label).Inc()
		s.Metrics.QtyCorrected.Add(float64(corrected))
		if !inv.TotalMatches && inv.InvoiceTotal != nil {
			s.Metrics.Mismatches.Inc()
		}
	}

	s.Logger.Info("reconcile.final",
		"req_id", common.RequestIDFromContext(ctx),
		"outcome", label,
		"retried", out.Retried,
		"total_matches", inv.TotalMatches,
		"grand_total", inv.GrandTotal,
		"warnings", len(inv.Warnings),
	)
	return out
}
