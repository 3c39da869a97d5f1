package verification

import "regexp"

// Order identifiers arrive in many shapes: "#1234", "order 1234",
// "order number: 1234", or a bare run of digits. Patterns are tried in
// order of specificity; the first capture wins.
var orderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d{3,10})\b`),
	regexp.MustCompile(`(?i)\border(?:\s+(?:number|no\.?|id))?\s*[:#]?\s*(\d{3,10})\b`),
	regexp.MustCompile(`\b(\d{5,10})\b`),
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ExtractOrderNumber pulls the first order-identifier-shaped token from
// free-form text. Returns an empty string when nothing matches.
func ExtractOrderNumber(text string) string {
	for _, p := range orderPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractEmail pulls the first email address from free-form text.
// Returns an empty string when nothing matches.
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}
