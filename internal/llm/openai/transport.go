package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm"
)

// maxResponseBytes bounds a chat/completions body; invoices with hundreds of lines stay well under it.
const maxResponseBytes = 8 << 20

// post sends body as JSON to BaseURL+path and returns the response body.
// A non-2xx answer comes back as *llm.StatusError with the body attached.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Request-ID", rid)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("llm.http.send_error", "req_id", rid, "path", path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("send %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("llm.http.body_close_error", "req_id", rid, "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	c.log.Debug("llm.http.response",
		"req_id", rid,
		"path", path,
		"status", resp.StatusCode,
		"request_bytes", len(payload),
		"response_bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return raw, &llm.StatusError{Status: resp.StatusCode, Body: raw}
	}
	return raw, nil
}
