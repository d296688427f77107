package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Processed          *prometheus.CounterVec // by outcome
	Retries            prometheus.Counter
	RetryFailures      prometheus.Counter
	Mismatches         prometheus.Counter
	QtyCorrected       prometheus.Counter
	ExtractionFailures prometheus.Counter
	ExtractLatencySec  prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_processed_total",
		Help: "Invoices that reached the final reconcile state, by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoice_retry_total"})
	retryFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoice_retry_failed_total"})
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoice_total_mismatch_total"})
	qtyCorrected := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoice_qty_corrected_lines_total"})
	extractFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "invoice_extraction_failed_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_extract_latency_seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	r.MustRegister(processed, retries, retryFailures, mismatches, qtyCorrected, extractFailures, latency)
	return &Registry{
		reg:                r,
		Processed:          processed,
		Retries:            retries,
		RetryFailures:      retryFailures,
		Mismatches:         mismatches,
		QtyCorrected:       qtyCorrected,
		ExtractionFailures: extractFailures,
		ExtractLatencySec:  latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
