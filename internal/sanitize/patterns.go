package sanitize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	reMasterCase   = regexp.MustCompile(`(?i)CS(\d{6})(?:\D|$)`)
	reQtyHint      = regexp.MustCompile(`\+(\d{4})(?:\D|$)`)
	rePackFraction = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// ExtractMasterCase returns the value of a "CS" + 6 digit case code in the raw OCR line.
func ExtractMasterCase(rawLine string) *int {
	return firstInt(reMasterCase, rawLine)
}

// ExtractQtyHint returns the value of a "+" + 4 digit quantity hint in the raw OCR line.
func ExtractQtyHint(rawLine string) *int {
	return firstInt(reQtyHint, rawLine)
}

// ExtractPackFraction returns X from an "X/Y" pack notation in the description,
// read as X sub-units per shipped unit.
func ExtractPackFraction(description string) *int {
	return firstInt(rePackFraction, strings.ToUpper(description))
}

func firstInt(re *regexp.Regexp, s string) *int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return nil
	}
	// an out-of-range value saturates so callers still see that the pattern matched
	n, err := strconv.Atoi(m[1])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil
	}
	return &n
}
