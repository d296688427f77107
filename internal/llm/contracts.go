package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
)

// CorrectionHint turns an extraction request into the single corrective round-trip.
type CorrectionHint struct {
	PrintedTotal  float64
	ComputedTotal float64
	PreviousJSON  []byte // first-pass response, echoed back so the model can fix it
}

type ExtractRequest struct {
	ImageBase64  string
	MimeType     string
	FilenameHint string

	Correction *CorrectionHint
}

// IsCorrection reports whether this is the corrective round-trip.
func (r ExtractRequest) IsCorrection() bool { return r.Correction != nil }

// InvoiceExtractor is the interface the reconciler depends on.
// A call either returns a tolerant-decoded invoice or fails.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, req ExtractRequest) (entity.RawInvoice, []byte /*rawJSON*/, error)
}

// StatusError is a non-2xx answer from the extraction service.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 300 {
		body = body[:300] + "…"
	}
	return fmt.Sprintf("extraction service returned %d: %s", e.Status, body)
}
