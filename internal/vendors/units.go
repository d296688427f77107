package vendors

import (
	"strings"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/sanitize"
)

// PackToken maps a pack-size token in the description (e.g. "6PK") to the number
// of sell units in a case when the extracted case code is 1.
type PackToken struct {
	Token      string
	Multiplier int
}

// UnitsInput is what the units-per-case resolver looks at for one line.
type UnitsInput struct {
	Description string
	CaseCode    *int
}

// ResolveUnitsPerCase derives the sub-case multiplier. First match wins:
// pack fraction, vendor pack token (case code == 1), case code > 1, then 1.
// The result is always validated.
func ResolveUnitsPerCase(in UnitsInput, tokens []PackToken) int {
	return ValidateUnitsPerCase(resolveUnits(in, tokens))
}

func resolveUnits(in UnitsInput, tokens []PackToken) int {
	if x := sanitize.ExtractPackFraction(in.Description); x != nil {
		return *x
	}
	if in.CaseCode != nil && *in.CaseCode == 1 {
		desc := strings.ToUpper(in.Description)
		for _, t := range tokens {
			if t.Token != "" && strings.Contains(desc, strings.ToUpper(t.Token)) {
				return t.Multiplier
			}
		}
	}
	if in.CaseCode != nil && *in.CaseCode > 1 {
		return *in.CaseCode
	}
	return 1
}

// ValidateUnitsPerCase forces anything outside (0, MaxUnitsPerCase] to 1.
// Packaging ambiguity must never block a line.
func ValidateUnitsPerCase(n int) int {
	if n <= 0 || n > constants.MaxUnitsPerCase {
		return 1
	}
	return n
}
