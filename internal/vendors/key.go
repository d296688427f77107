package vendors

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key returns the canonical vendor key: diacritics folded, uppercased, alphanumeric only.
// "Bon Bright Distr." -> "BONBRIGHTDISTR".
func Key(vendorName string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		vendorName,
	)
	if err != nil {
		folded = vendorName
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
