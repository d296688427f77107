package normalize

import "math"

const (
	zeroAmountThreshold = 0.005
	maxInferredQty      = 9999
	absTolerance        = 0.05
	relTolerance        = 0.01
)

// CorrectQuantity infers a more likely ordered quantity from the extended line amount
// and the unit cost. A near-zero line amount forces zero. Otherwise round(amount/cost)
// is accepted when it reproduces the amount within max(0.05, 1%). It reports whether the
// returned quantity differs from extracted.
func CorrectQuantity(extracted int, netCost float64, lineAmount *float64) (int, bool) {
	if lineAmount == nil {
		return extracted, false
	}
	amt := *lineAmount
	if math.Abs(amt) < zeroAmountThreshold {
		return 0, extracted != 0
	}
	if netCost <= 0 {
		return extracted, false
	}

	inferred := math.Round(amt / netCost)
	if inferred < 0 || inferred > maxInferredQty {
		return extracted, false
	}
	tolerance := math.Max(absTolerance, relTolerance*math.Abs(amt))
	if math.Abs(inferred*netCost-amt) > tolerance {
		return extracted, false
	}
	q := int(inferred)
	return q, q != extracted
}
