package evidence

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsing heuristics for UPI payment screenshots. The rules are tuned for
// Indian UPI app layouts (GPay in particular) and for the character
// confusions optical recognition produces on them, most notably the digit 1
// being read as I, l, | or !.

var (
	currencyAmountRe  = regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*([\d,Il|]+\.?\d*)`)
	labelledAmountRe  = regexp.MustCompile(`(?i)(?:Paid|Amount)\s*[:\-]?\s*([\d,]+\.?\d*)`)
	lonelyOneLineRe   = regexp.MustCompile(`(?i)^(?:₹|Rs\.?|INR)?\s*[1Il|!]\s*$`)
	lonelyOneGlyphsRe = regexp.MustCompile(`^[Il|!]+$`)
	groupedNumberRe   = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	decimalNumberRe   = regexp.MustCompile(`^\d+\.\d+$`)
	smallIntegerRe    = regexp.MustCompile(`^\d{1,3}$`)
	edgeNonDigitsRe   = regexp.MustCompile(`^[^\d]+|[^\d]+$`)

	upiRefRe        = regexp.MustCompile(`(?im)(?:Google transaction ID|UPI transaction ID|UPI Ref\.? No\.|Ref No\.)\s*[:\-]?\s*([a-zA-Z0-9]+)`)
	genericTxnIDRe  = regexp.MustCompile(`(?i)Transaction ID\s*[:\-]?\s*([a-zA-Z0-9]+)`)
	oneConfusions = strings.NewReplacer("I", "1", "l", "1", "|", "1")
)

// parseAmount extracts a monetary amount from recognized text, or nil when
// none is found with acceptable confidence.
func parseAmount(text string) *float64 {
	// Currency-prefixed amounts are the highest-confidence signal.
	if m := currencyAmountRe.FindStringSubmatch(text); m != nil {
		val := oneConfusions.Replace(m[1])
		return toAmount(strings.ReplaceAll(val, ",", ""))
	}

	// "Paid 500" / "Amount: 500" context.
	if m := labelledAmountRe.FindStringSubmatch(text); m != nil {
		return toAmount(strings.ReplaceAll(m[1], ",", ""))
	}

	lines := strings.Split(text, "\n")

	// A line holding nothing but a misread "1" would be stripped by the
	// noise filter below, so it is scanned first.
	for _, line := range lines {
		if lonelyOneLineRe.MatchString(strings.TrimSpace(line)) {
			return toAmount("1")
		}
	}

	// Isolated lines that are mostly a number.
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		stripped := edgeNonDigitsRe.ReplaceAllString(clean, "")

		// High surrounding noise means the digits are embedded in a
		// sentence, not a standalone amount.
		if len(clean)-len(stripped) > 10 {
			continue
		}

		if stripped == "" && lonelyOneGlyphsRe.MatchString(clean) {
			return toAmount("1")
		}
		if groupedNumberRe.MatchString(stripped) {
			return toAmount(strings.ReplaceAll(stripped, ",", ""))
		}
		if decimalNumberRe.MatchString(stripped) {
			return toAmount(stripped)
		}
		// Bare integers are only trusted up to 3 digits; longer runs are
		// usually phone numbers or reference fragments, while real amounts
		// >= 1000 carry commas or decimals and are caught above.
		if smallIntegerRe.MatchString(stripped) {
			return toAmount(stripped)
		}
	}

	return nil
}

// parseTransactionRef extracts a UPI or app transaction reference, or empty.
func parseTransactionRef(text string) string {
	if m := upiRefRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := genericTxnIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func toAmount(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
