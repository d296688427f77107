package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_HandlerExposesCounters(t *testing.T) {
	m := NewRegistry()
	m.Retries.Inc()
	m.Processed.WithLabelValues("matched").Add(2)
	m.ExtractLatencySec.Observe(1.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Processed.WithLabelValues("matched")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoice_processed_total{outcome="matched"} 2`)
	assert.Contains(t, rec.Body.String(), "invoice_extract_latency_seconds_count 1")
}
