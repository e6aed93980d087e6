package evidence

import (
	"context"
	"errors"
	"math"
	"strings"
)

// Extraction is the structured signal pulled out of a payment screenshot.
// Any field may be missing: a screenshot with no recognizable amount is
// still a valid submission, it just defers reconciliation to manual review.
type Extraction struct {
	RawText        string   `json:"rawText"`
	TransactionRef string   `json:"transactionRef,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
}

// Recognizer is the external optical-recognition capability. Implementations
// must report an unsupported image format distinctly from an image that
// simply contains no text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

var (
	// ErrUnsupportedFormat indicates the image bytes are not a format the
	// recognizer can decode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrNoText indicates the image decoded fine but contained no
	// recognizable text.
	ErrNoText = errors.New("no text recognized")
)

// Extract runs the recognizer over the image and parses a transaction
// reference and monetary amount out of the recognized text. Recognition
// failures are not fatal: the partial extraction is returned alongside the
// error so the caller can log it and proceed with the submission.
func Extract(ctx context.Context, rec Recognizer, image []byte) (Extraction, error) {
	raw, err := rec.Recognize(ctx, image)
	ext := Extraction{RawText: raw}
	if err != nil {
		return ext, err
	}

	ext.TransactionRef = parseTransactionRef(raw)
	ext.Amount = parseAmount(raw)
	return ext, nil
}

// ReconcileTolerance is the absolute currency-unit tolerance used when
// comparing an expected amount against a recognized one. Recognized text may
// drop fractional units, so equality is too strict.
const ReconcileTolerance = 1.0

// Reconcile reports whether a recognized amount matches the expected total.
// A missing recognized amount never matches; mismatches are surfaced as a
// visual flag for the reviewing administrator and never block a transition.
func Reconcile(expected float64, parsed *float64) bool {
	if parsed == nil {
		return false
	}
	return math.Abs(*parsed-expected) < ReconcileTolerance
}

// SenderLine pulls the payer line out of recognized text for display in the
// review console. Returns empty when no "from" line is present.
func SenderLine(rawText string) string {
	for _, line := range strings.Split(rawText, "\n") {
		lower := strings.ToLower(line)
		if idx := strings.Index(lower, "from"); idx != -1 {
			rest := line[idx+len("from"):]
			return strings.TrimSpace(strings.TrimLeft(rest, ": \t"))
		}
	}
	return ""
}
