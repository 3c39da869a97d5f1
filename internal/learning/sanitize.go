package learning

import "regexp"

// piiRule pairs a detection pattern with its replacement token. Rules are
// applied in order: card numbers before order numbers so a 16-digit sequence
// is not half-consumed as an order id.
type piiRule struct {
	pattern     *regexp.Regexp
	replacement string
	// identifying marks patterns that denote a specific person or payment
	// instrument. Only these participate in the auto-approval safety check;
	// a bare numeric token is too common in legitimate article text.
	identifying bool
}

var piiRules = []piiRule{
	{
		pattern:     regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`),
		replacement: "[CARD]",
		identifying: true,
	},
	{
		pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		replacement: "[EMAIL]",
		identifying: true,
	},
	{
		// A phone number needs parens or separators between its groups.
		// A contiguous digit run is an order id, handled below.
		pattern:     regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{3,4}\)[ .-]?\d{3,4}[ .-]?\d{3,4}|\d{3,4}[ .-]\d{3,4}[ .-]\d{3,4})\b`),
		replacement: "[PHONE]",
		identifying: true,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b\d{1,5}\s+[a-z0-9.'\-]+(?: [a-z0-9.'\-]+){0,3}\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|place|pl)\b\.?`),
		replacement: "[ADDRESS]",
		identifying: true,
	},
	{
		pattern:     regexp.MustCompile(`#?\b\d{5,12}\b`),
		replacement: "[ORDER_NUMBER]",
	},
}

// Sanitize scrubs PII-shaped tokens from text, replacing each with a typed
// placeholder so the transcript stays readable for extraction.
func Sanitize(text string) string {
	for _, rule := range piiRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

// ContainsPII reports whether text still matches an identifying PII pattern.
// Used as a safety override: content that trips this check is never
// auto-approved.
func ContainsPII(text string) bool {
	for _, rule := range piiRules {
		if rule.identifying && rule.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
