package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Reason explains why a sanitizer returned its fallback instead of a parsed value.
type Reason string

const (
	ReasonOK          Reason = ""
	ReasonMissing     Reason = "missing"
	ReasonEmpty       Reason = "empty"
	ReasonUnparseable Reason = "unparseable"
)

// Result carries either a sanitized value or the fallback together with the reason it was used.
type Result[T any] struct {
	Value  T
	Reason Reason
}

// OK reports whether Value was parsed from the input rather than defaulted.
func (r Result[T]) OK() bool { return r.Reason == ReasonOK }

func fallbackOf[T any](v T, why Reason) Result[T] { return Result[T]{Value: v, Reason: why} }

// ocrConfusables maps characters OCR commonly emits in place of digits.
var ocrConfusables = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1",
)

// ToMoney converts a loosely typed value into a decimal amount.
// Strings are corrected for OCR confusables and stripped of everything but digits, '.' and '-'.
func ToMoney(v any, fallback float64) Result[float64] {
	switch t := v.(type) {
	case nil:
		return fallbackOf(fallback, ReasonMissing)
	case float64:
		return finite(t, fallback)
	case float32:
		return finite(float64(t), fallback)
	case int:
		return Result[float64]{Value: float64(t)}
	case int64:
		return Result[float64]{Value: float64(t)}
	case json.Number:
		// a decoded JSON number is well-formed; only OCR text needs cleaning
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return finite(d.InexactFloat64(), fallback)
		}
		return moneyFromString(t.String(), fallback)
	case string:
		return moneyFromString(t, fallback)
	default:
		return fallbackOf(fallback, ReasonUnparseable)
	}
}

func moneyFromString(s string, fallback float64) Result[float64] {
	s = ocrConfusables.Replace(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if isDegenerate(cleaned) {
		return fallbackOf(fallback, ReasonEmpty)
	}
	// "12.50 ea." and "$12.50." leave a dangling separator
	cleaned = strings.TrimRight(cleaned, ".-")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return fallbackOf(fallback, ReasonUnparseable)
	}
	return finite(d.InexactFloat64(), fallback)
}

// ToIntPreserveZero converts a loosely typed value into an integer.
// A parsed zero is returned as zero; only empty or unparseable input yields the fallback.
func ToIntPreserveZero(v any, fallback int) Result[int] {
	switch t := v.(type) {
	case nil:
		return fallbackOf(fallback, ReasonMissing)
	case int:
		return Result[int]{Value: t}
	case int64:
		return Result[int]{Value: int(t)}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fallbackOf(fallback, ReasonUnparseable)
		}
		tr := math.Trunc(t)
		if tr < math.MinInt || tr >= math.MaxInt {
			return fallbackOf(fallback, ReasonUnparseable)
		}
		return Result[int]{Value: int(tr)}
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return intFromDecimal(d, fallback)
		}
		return intFromString(t.String(), fallback)
	case string:
		return intFromString(t, fallback)
	default:
		return fallbackOf(fallback, ReasonUnparseable)
	}
}

var (
	decMinInt = decimal.NewFromInt(math.MinInt)
	decMaxInt = decimal.NewFromInt(math.MaxInt)
)

func intFromDecimal(d decimal.Decimal, fallback int) Result[int] {
	d = d.Truncate(0)
	if d.LessThan(decMinInt) || d.GreaterThan(decMaxInt) {
		return fallbackOf(fallback, ReasonUnparseable)
	}
	return Result[int]{Value: int(d.IntPart())}
}

func intFromString(s string, fallback int) Result[int] {
	s = strings.TrimSpace(ocrConfusables.Replace(s))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case (r == '-' || r == '+') && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" || cleaned == "+" {
		return fallbackOf(fallback, ReasonEmpty)
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return fallbackOf(fallback, ReasonUnparseable)
	}
	return Result[int]{Value: n}
}

// Digits keeps only ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Text renders a loosely typed value as trimmed text. Numbers keep their JSON form.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Round2 rounds half away from zero to cents.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

func finite(x, fallback float64) Result[float64] {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallbackOf(fallback, ReasonUnparseable)
	}
	return Result[float64]{Value: x}
}

func isDegenerate(s string) bool {
	if s == "" {
		return true
	}
	return strings.Trim(s, ".-") == ""
}

// Extend returns round2(unit × qty) computed in decimal.
func Extend(unit float64, qty int) float64 {
	if math.IsNaN(unit) || math.IsInf(unit, 0) {
		return 0
	}
	return decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

// Sum2 returns round2 of the decimal sum of xs.
func Sum2(xs ...float64) float64 {
	total := decimal.Zero
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(x))
	}
	return total.Round(2).InexactFloat64()
}

// WithinCents reports whether |round2(a) − round2(b)| ≤ tol, compared in decimal so that
// 61.40 vs 61.35 sits exactly on a 0.05 tolerance.
func WithinCents(a, b, tol float64) bool {
	da := decimal.NewFromFloat(Round2(a))
	db := decimal.NewFromFloat(Round2(b))
	return da.Sub(db).Abs().LessThanOrEqual(decimal.NewFromFloat(tol))
}
