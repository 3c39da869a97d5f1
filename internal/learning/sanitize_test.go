package learning_test

import (
	"strings"
	"testing"

	"github.com/stillpoint/parley/internal/learning"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"email address",
			"Reach me at jane.doe+orders@example.co.uk thanks",
			"Reach me at [EMAIL] thanks",
		},
		{
			"order number with hash",
			"my order is #1234567",
			"my order is [ORDER_NUMBER]",
		},
		{
			"bare order number",
			"it was 987654 I think",
			"it was [ORDER_NUMBER] I think",
		},
		{
			"card number",
			"charged to 4111 1111 1111 1111 twice",
			"charged to [CARD] twice",
		},
		{
			"card with dashes",
			"card 4111-1111-1111-1111 please",
			"card [CARD] please",
		},
		{
			"phone number",
			"call me at +1 555-867-5309",
			"call me at [PHONE]",
		},
		{
			"parenthesized phone",
			"reach us on (555) 123-4567 weekdays",
			"reach us on [PHONE] weekdays",
		},
		{
			"bare long digit run is an order id",
			"order 12345678901 left the warehouse",
			"order [ORDER_NUMBER] left the warehouse",
		},
		{
			"street address",
			"ship to 42 Elm Street please",
			"ship to [ADDRESS] please",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := learning.Sanitize(tc.input); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeCardBeforeOrderNumber(t *testing.T) {
	got := learning.Sanitize("4111111111111111")
	if strings.Contains(got, "ORDER_NUMBER") {
		t.Errorf("card consumed as order number: %q", got)
	}
	if got != "[CARD]" {
		t.Errorf("Sanitize = %q, want [CARD]", got)
	}
}

func TestContainsPII(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"email", "contact jane@example.com for details", true},
		{"card", "use 4111 1111 1111 1111", true},
		{"separated phone", "call 555-867-5309 anytime", true},
		{"bare order id does not block", "order 12345678901 left the warehouse", false},
		{"clean text", "Our returns window is 30 days from delivery.", false},
		{"sanitized placeholder", "customer [EMAIL] asked about [ORDER_NUMBER]", false},
		{"year alone is fine", "policy updated in 2024", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := learning.ContainsPII(tc.input); got != tc.want {
				t.Errorf("ContainsPII(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
