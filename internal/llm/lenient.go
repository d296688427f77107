package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
)

var invoiceSynonyms = map[string]string{
	"vendor":        "vendorName",
	"vendor_name":   "vendorName",
	"supplier":      "vendorName",
	"invoice_date":  "invoiceDate",
	"date":          "invoiceDate",
	"invoice_total": "invoiceTotal",
	"total":         "invoiceTotal",
	"line_items":    "items",
	"lines":         "items",
}

var itemSynonyms = map[string]string{
	"net_cost":    "netCost",
	"case_cost":   "netCost",
	"cost":        "netCost",
	"line_amount": "lineAmount",
	"extended":    "lineAmount",
	"amount":      "lineAmount",
	"qty_ordered": "qtyOrdered",
	"qty":         "qtyOrdered",
	"quantity":    "qtyOrdered",
	"raw_line":    "rawLine",
	"raw":         "rawLine",
}

// NormalizeInvoiceJSON
// - Strips markdown fences and prose around the JSON object
// - Unwraps {"invoice": {...}}
// - Renames known synonyms (vendor_name -> vendorName, qty -> qtyOrdered, ...)
// - Checks the envelope shape
// Numbers are kept as json.Number so the sanitizers see exactly what the model wrote.
func NormalizeInvoiceJSON(raw []byte, logger *slog.Logger) (map[string]any, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	body := extractObject(raw)
	if len(body) == 0 {
		return nil, nil, fmt.Errorf("sanitize: no json object in response")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response is null")
	}

	if inner, ok := m["invoice"].(map[string]any); ok && len(m) == 1 {
		m = inner
	}

	renamed := renameKeys(m, invoiceSynonyms)
	if items, ok := m["items"].([]any); ok {
		for _, it := range items {
			if obj, ok := it.(map[string]any); ok {
				renamed = append(renamed, renameKeys(obj, itemSynonyms)...)
			}
		}
	}

	if err := ValidateEnvelope(m); err != nil {
		return nil, renamed, fmt.Errorf("sanitize: %w", err)
	}
	if len(renamed) > 0 {
		logger.Debug("llm.extract.normalize_sanitize", "renamed", renamed)
	}
	return m, renamed, nil
}

// DecodeRawInvoice tolerantly decodes an extraction response. It fails only when the
// response has no JSON object or the envelope shape is wrong.
func DecodeRawInvoice(raw []byte, logger *slog.Logger) (entity.RawInvoice, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, _, err := NormalizeInvoiceJSON(raw, logger)
	if err != nil {
		return entity.RawInvoice{}, err
	}

	out := entity.RawInvoice{
		VendorName:   m["vendorName"],
		InvoiceDate:  m["invoiceDate"],
		InvoiceTotal: m["invoiceTotal"],
	}
	items, _ := m["items"].([]any)
	skipped := 0
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		out.Items = append(out.Items, entity.RawLineItem{
			UPC:         obj["upc"],
			Description: obj["description"],
			SKU:         obj["sku"],
			NetCost:     obj["netCost"],
			LineAmount:  obj["lineAmount"],
			QtyOrdered:  obj["qtyOrdered"],
			RawLine:     obj["rawLine"],
		})
	}
	if skipped > 0 {
		logger.Warn("llm.extract.items_skipped", "skipped", skipped, "kept", len(out.Items))
	}
	return out, nil
}

// renameKeys moves synonyms onto their canonical key without overwriting a value
// that is already present.
func renameKeys(m map[string]any, synonyms map[string]string) []string {
	var renamed []string
	for _, from := range slices.Sorted(maps.Keys(synonyms)) {
		to := synonyms[from]
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		renamed = append(renamed, from+"->"+to)
	}
	return renamed
}

// extractObject trims code fences and any prose around the outermost JSON object.
func extractObject(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil
	}
	return []byte(s[start : end+1])
}
