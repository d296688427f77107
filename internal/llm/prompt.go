package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxPreviousJSON = 6000

// BuildSystemPrompt composes the system message for invoice line extraction.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a wholesale invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Copy values exactly as printed; do not compute, round, or reformat numbers.",
		"vendorName is the company that issued the invoice (the seller), not the customer.",
		"invoiceTotal is the printed invoice total; use null if no total is printed.",
		"Return one entry in 'items' per printed product line, in the printed order.",
		"For each line: 'upc' is the barcode number, 'sku' the vendor item number, 'description' the product text,",
		"'netCost' the case cost, 'lineAmount' the extended amount, 'qtyOrdered' the quantity billed.",
		"'rawLine' is the full printed text of that line, including codes such as CS000024 or +0003.",
		"If a line shows a quantity of 0 (not shipped), return \"0\" for qtyOrdered; never guess 1.",
		"Use null for any value that is not printed. Never invent lines.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and, on the corrective round-trip, the
// totals that disagreed plus the previous answer.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Extract the invoice in the attached image.\n")

	if c := req.Correction; c != nil {
		b.WriteString(BuildCorrectionDirective(*c))
	}
	return b.String()
}

// BuildCorrectionDirective is the short corrective instruction sent on the single retry.
func BuildCorrectionDirective(c CorrectionHint) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"\nYour previous answer does not reconcile: the printed invoice total is %.2f but the lines sum to %.2f. ",
		c.PrintedTotal, c.ComputedTotal)
	b.WriteString("Re-read every line carefully, especially quantities, case costs and extended amounts, ")
	b.WriteString("and return the corrected invoice in the same JSON schema.\n")

	if prev := strings.TrimSpace(string(c.PreviousJSON)); prev != "" {
		b.WriteString("\nPrevious answer:\n")
		if len(prev) > maxPreviousJSON {
			b.WriteString(truncateUTF8(prev, maxPreviousJSON))
			b.WriteString("\n…(truncated)")
		} else {
			b.WriteString(prev)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
