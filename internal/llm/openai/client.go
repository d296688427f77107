package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm"
)

// ExtractInvoice implements llm.InvoiceExtractor using chat/completions with an image part
// and a strict json_schema response format.
func (c *Client) ExtractInvoice(ctx context.Context, req llm.ExtractRequest) (entity.RawInvoice, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	if strings.TrimSpace(req.ImageBase64) == "" {
		return entity.RawInvoice{}, nil, common.MissingInput("image data is required")
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"image_bytes", len(req.ImageBase64),
		"mime_type", mimeType,
		"correction", req.IsCorrection(),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return entity.RawInvoice{}, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "invoice",
				"strict": true,
				"schema": llm.BuildInvoiceJSONSchema(),
			},
		},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildUserPrompt(req)},
				{"type": "image_url", "image_url": map[string]any{
					"url": "data:" + mimeType + ";base64," + req.ImageBase64,
				}},
			}},
		},
	}

	raw, httpErr := c.post(ctx, "/chat/completions", body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.RawInvoice{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.RawInvoice{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.RawInvoice{}, raw, errors.New("no choices in openai response")
	}
	msg := cc.Choices[0].Message
	if msg.Refusal != "" {
		return entity.RawInvoice{}, raw, fmt.Errorf("model refused: %s", msg.Refusal)
	}
	content := []byte(strings.TrimSpace(msg.Content))

	// The strict schema is a request, not a guarantee; log drift and decode leniently.
	if err := llm.ValidateJSONAgainstSchema(llm.BuildInvoiceJSONSchema(), content); err != nil {
		c.log.Warn("llm.extract.schema_drift", "req_id", rid, "error", err)
	}

	inv, err := llm.DecodeRawInvoice(content, c.log)
	if err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.RawInvoice{}, content, fmt.Errorf("decode invoice: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", inv.VendorName,
		"date", inv.InvoiceDate,
		"total", inv.InvoiceTotal,
		"lines", len(inv.Items),
		"correction", req.IsCorrection(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return inv, content, nil
}
