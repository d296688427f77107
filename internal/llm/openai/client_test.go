package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm"
)

func chatResponse(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return b
}

func TestExtractInvoice_SendsImageAndDecodes(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(chatResponse(`{"vendorName":"Acme","invoiceDate":null,"invoiceTotal":"36.00","items":[{"upc":null,"description":"COLA","sku":null,"netCost":"12.00","lineAmount":"36.00","qtyOrdered":"3","rawLine":null}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "m"}, nil)
	ctx := common.WithRequestID(context.Background(), "req-1")
	inv, raw, err := c.ExtractInvoice(ctx, llm.ExtractRequest{ImageBase64: "aGVsbG8=", MimeType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", inv.VendorName)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "3", inv.Items[0].QtyOrdered)
	assert.Contains(t, string(raw), `"vendorName":"Acme"`)

	assert.Equal(t, "m", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].([]any)
	img := user[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", img["url"])
}

func TestExtractInvoice_CorrectionCarriesDirective(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		user := body["messages"].([]any)[1].(map[string]any)["content"].([]any)
		text = user[0].(map[string]any)["text"].(string)
		_, _ = w.Write(chatResponse(`{"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, _, err := c.ExtractInvoice(context.Background(), llm.ExtractRequest{
		ImageBase64: "eA==",
		Correction:  &llm.CorrectionHint{PrintedTotal: 61.35, ComputedTotal: 49.35},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "61.35")
	assert.Contains(t, text, "49.35")
}

func TestExtractInvoice_Failures(t *testing.T) {
	t.Run("missing image", func(t *testing.T) {
		c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"}, nil)
		_, _, err := c.ExtractInvoice(context.Background(), llm.ExtractRequest{})
		assert.ErrorIs(t, err, common.ErrMissingInput)
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
		_, _, err := c.ExtractInvoice(context.Background(), llm.ExtractRequest{ImageBase64: "eA=="})
		var se *llm.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
		_, _, err := c.ExtractInvoice(context.Background(), llm.ExtractRequest{ImageBase64: "eA=="})
		assert.ErrorContains(t, err, "no choices")
	})

	t.Run("unreadable content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(chatResponse("sorry, I cannot read that"))
		}))
		defer srv.Close()
		c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
		_, _, err := c.ExtractInvoice(context.Background(), llm.ExtractRequest{ImageBase64: "eA=="})
		assert.ErrorContains(t, err, "decode invoice")
	})
}
