package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_TIMEOUT", "")
	cfg := LoadConfig()
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, 1.35, cfg.Normalize.RetailMarkup)
	assert.Equal(t, 0.05, cfg.Normalize.MatchTolerance)
	assert.True(t, cfg.Normalize.RetryEnabled)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RETAIL_MARKUP", "1.5")
	t.Setenv("TOTAL_RETRY_ENABLED", "false")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("RULES_DB_DRIVER", "SQLite")
	t.Setenv("RULES_DB_DSN", "file:rules.db")
	t.Setenv("BATCH_WORKERS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, 1.5, cfg.Normalize.RetailMarkup)
	assert.False(t, cfg.Normalize.RetryEnabled)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sqlite", cfg.Rules.Driver)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RulesDriver(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{APIKey: "k"}, Server: ServerConfig{GRPCAddr: ":1"}}
	cfg.Rules.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.Rules.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.Rules.DSN = "postgres://localhost/rules"
	assert.NoError(t, cfg.Validate())
}

func TestGRPCStatus(t *testing.T) {
	st, _ := status.FromError(GRPCStatus(MissingInput("image is required")))
	assert.Equal(t, codes.InvalidArgument, st.Code())

	st, _ = status.FromError(GRPCStatus(ExtractionFailure("initial extraction", errors.New("boom"))))
	assert.Equal(t, codes.Unavailable, st.Code())

	st, _ = status.FromError(GRPCStatus(errors.New("other")))
	assert.Equal(t, codes.Internal, st.Code())

	assert.NoError(t, GRPCStatus(nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(MissingInput("no image")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad base64")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ExtractionFailure("initial extraction", errors.New("boom"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}

func TestExtractionFailureKeepsCause(t *testing.T) {
	cause := errors.New("no choices")
	err := ExtractionFailure("decode", cause)
	assert.ErrorIs(t, err, ErrExtractionFailure)
	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeExtractionFailure, appErr.Code)
}

func TestEnsureRequestID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestIDFromContext(ctx))

	ctx2, id2 := EnsureRequestID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, ctx, ctx2)
}

func TestNewLogger_LevelAndNoTime(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("normalize.invoice.ok")
	logger.Warn("reconcile.retry.failed", "req_id", "r1")

	out := buf.String()
	assert.NotContains(t, out, "normalize.invoice.ok")
	assert.Contains(t, out, "reconcile.retry.failed")
	assert.Contains(t, out, "req_id=r1")
	assert.NotContains(t, out, "time=")
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
