package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInvoiceJSONSchema returns the JSON-Schema (draft 2020-12 subset) we ask the model to follow.
// Amounts and quantities are strings so the model copies what it reads instead of computing.
func BuildInvoiceJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"upc":         nullableString(),
			"description": nullableString(),
			"sku":         nullableString(),
			"netCost":     nullableString(),
			"lineAmount":  nullableString(),
			"qtyOrdered":  nullableString(),
			"rawLine":     nullableString(),
		},
		"required": []string{"upc", "description", "sku", "netCost", "lineAmount", "qtyOrdered", "rawLine"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendorName":   nullableString(),
			"invoiceDate":  nullableString(),
			"invoiceTotal": nullableString(),
			"items":        map[string]any{"type": "array", "items": item},
		},
		"required": []string{"vendorName", "invoiceDate", "invoiceTotal", "items"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

// envelopeSchema is the minimum shape we accept back: an object whose items, if present,
// is an array. Everything inside is handled by the sanitizers.
const envelopeSchema = `{
  "type": "object",
  "properties": {
    "items": {"type": ["array", "null"]}
  }
}`

var (
	envelopeOnce sync.Once
	envelope     *jsonschema.Schema
	envelopeErr  error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		envelope, envelopeErr = jsonschema.CompileString("envelope.json", envelopeSchema)
	})
	return envelope, envelopeErr
}

// ValidateEnvelope checks a decoded document against the envelope schema.
func ValidateEnvelope(doc any) error {
	s, err := compiledEnvelope()
	if err != nil {
		return fmt.Errorf("compile envelope schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("json does not match envelope: %w", err)
	}
	return nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
