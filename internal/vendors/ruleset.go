package vendors

import (
	"slices"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/sanitize"
)

// RuleSet is a stateless bundle of the five normalization operations used for one vendor
// (or commodity class). Values are copied, never mutated in place.
type RuleSet struct {
	Name       string
	Category   string
	PackTokens []PackToken

	NormalizeUPC          func(raw any) string
	NormalizeSKU          func(raw any) string
	NormalizeQty          func(raw any) sanitize.Result[int]
	NormalizeNetCost      func(raw any) sanitize.Result[float64]
	NormalizeUnitsPerCase func(in UnitsInput, tokens []PackToken) int
}

// UnitsPerCase runs the set's units resolver with the set's own pack tokens.
func (rs RuleSet) UnitsPerCase(in UnitsInput) int {
	return ValidateUnitsPerCase(rs.NormalizeUnitsPerCase(in, rs.PackTokens))
}

// Override replaces part of a RuleSet.
type Override func(*RuleSet)

// With returns a copy of rs with the overrides applied.
func (rs RuleSet) With(overrides ...Override) RuleSet {
	out := rs
	out.PackTokens = slices.Clone(rs.PackTokens)
	for _, o := range overrides {
		o(&out)
	}
	return out
}

func Named(name string) Override {
	return func(rs *RuleSet) { rs.Name = name }
}

func InCategory(category string) Override {
	return func(rs *RuleSet) { rs.Category = category }
}

func WithPackTokens(tokens ...PackToken) Override {
	return func(rs *RuleSet) { rs.PackTokens = slices.Clone(tokens) }
}

func WithUPC(fn func(any) string) Override {
	return func(rs *RuleSet) { rs.NormalizeUPC = fn }
}

func WithSKU(fn func(any) string) Override {
	return func(rs *RuleSet) { rs.NormalizeSKU = fn }
}

func WithQty(fn func(any) sanitize.Result[int]) Override {
	return func(rs *RuleSet) { rs.NormalizeQty = fn }
}

func WithNetCost(fn func(any) sanitize.Result[float64]) Override {
	return func(rs *RuleSet) { rs.NormalizeNetCost = fn }
}

func WithUnitsPerCase(fn func(UnitsInput, []PackToken) int) Override {
	return func(rs *RuleSet) { rs.NormalizeUnitsPerCase = fn }
}

// DefaultRuleSet is the global fallback.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Name:                  "default",
		NormalizeUPC:          normalizeUPC,
		NormalizeSKU:          normalizeSKU,
		NormalizeQty:          normalizeQty,
		NormalizeNetCost:      normalizeNetCost,
		NormalizeUnitsPerCase: ResolveUnitsPerCase,
	}
}

func normalizeUPC(raw any) string {
	d := sanitize.Digits(sanitize.Text(raw))
	if len(d) > constants.UPCWidth {
		d = d[:constants.UPCWidth]
	}
	return d
}

func normalizeSKU(raw any) string {
	return sanitize.Digits(sanitize.Text(raw))
}

func normalizeQty(raw any) sanitize.Result[int] {
	return sanitize.ToIntPreserveZero(raw, 0)
}

func normalizeNetCost(raw any) sanitize.Result[float64] {
	return sanitize.ToMoney(raw, 0)
}
