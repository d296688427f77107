package vendors

import (
	"slices"
	"strings"
)

// Tier says which level of the registry resolved a lookup.
type Tier string

const (
	TierExact    Tier = "exact"
	TierCategory Tier = "category"
	TierDefault  Tier = "default"
)

// Commodity classes with a shared rule set.
const (
	CategoryBeverage = "BEVERAGE"
)

// Registry maps vendor keys to rule sets. It is built once by NewRegistry and is
// read-only afterwards, so lookups need no locking.
type Registry struct {
	vendors        map[string]RuleSet
	vendorCategory map[string]string
	categories     map[string]RuleSet
	fallback       RuleSet
}

// Option configures a Registry under construction.
type Option func(*Registry)

// WithVendor registers an exact rule set for a vendor key.
func WithVendor(vendorKey string, rs RuleSet) Option {
	return func(r *Registry) {
		r.vendors[Key(vendorKey)] = rs.With()
	}
}

// WithVendorCategory assigns a vendor to a commodity class.
func WithVendorCategory(vendorKey, category string) Option {
	return func(r *Registry) {
		r.vendorCategory[Key(vendorKey)] = strings.ToUpper(strings.TrimSpace(category))
	}
}

// WithCategory registers (or replaces) a commodity class base set.
func WithCategory(category string, rs RuleSet) Option {
	return func(r *Registry) {
		c := strings.ToUpper(strings.TrimSpace(category))
		r.categories[c] = rs.With(InCategory(c))
	}
}

// WithVendorPackTokens gives a vendor its own pack tokens on top of whatever set
// it currently resolves to. The vendor's tokens are checked first and replace an
// inherited token with the same text.
func WithVendorPackTokens(vendorKey string, tokens ...PackToken) Option {
	return func(r *Registry) {
		key := Key(vendorKey)
		base, _ := r.Lookup(key)
		merged := slices.Clone(tokens)
		for _, t := range base.PackTokens {
			if !slices.ContainsFunc(merged, func(m PackToken) bool { return strings.EqualFold(m.Token, t.Token) }) {
				merged = append(merged, t)
			}
		}
		r.vendors[key] = base.With(Named(key), WithPackTokens(merged...))
	}
}

// BeverageRuleSet is the base for beverage distributors: a 24-count case shipped as
// six-packs is 4 sell units, as twelve-packs 2.
func BeverageRuleSet() RuleSet {
	return DefaultRuleSet().With(
		Named("beverage"),
		InCategory(CategoryBeverage),
		WithPackTokens(
			PackToken{Token: "12PK", Multiplier: 2},
			PackToken{Token: "6PK", Multiplier: 4},
		),
	)
}

// NewRegistry builds the registry with the built-in sets, then applies opts in order.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		vendors:        make(map[string]RuleSet),
		vendorCategory: make(map[string]string),
		categories:     make(map[string]RuleSet),
		fallback:       DefaultRuleSet(),
	}
	beverage := BeverageRuleSet()
	r.categories[CategoryBeverage] = beverage
	r.vendors["BONBRIGHTDISTR"] = beverage.With(Named("BONBRIGHTDISTR"))

	for _, o := range opts {
		o(r)
	}
	return r
}

// Lookup resolves a vendor key: exact match, then the vendor's category, then the default.
func (r *Registry) Lookup(vendorKey string) (RuleSet, Tier) {
	if rs, ok := r.vendors[vendorKey]; ok {
		return rs, TierExact
	}
	if c, ok := r.vendorCategory[vendorKey]; ok {
		if rs, ok := r.categories[c]; ok {
			return rs, TierCategory
		}
	}
	return r.fallback, TierDefault
}

// Default returns the global fallback set.
func (r *Registry) Default() RuleSet { return r.fallback }
