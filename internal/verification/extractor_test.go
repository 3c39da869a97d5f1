package verification_test

import (
	"testing"

	"github.com/stillpoint/parley/internal/verification"
)

func TestExtractOrderNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"hash prefix", "my order #12345 hasn't arrived", "12345"},
		{"order keyword", "regarding order 9876 please", "9876"},
		{"order number keyword", "Order Number: 4521", "4521"},
		{"order no keyword", "order no. 7788", "7788"},
		{"bare digits", "still waiting on 123456", "123456"},
		{"bare digits too short", "it was 1234 I think", ""},
		{"hash allows short ids", "see #123", "123"},
		{"hash beats bare digits", "ticket 999999 about order #555", "555"},
		{"nothing", "where is my package?", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := verification.ExtractOrderNumber(tc.text); got != tc.want {
				t.Errorf("ExtractOrderNumber(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain address", "I ordered with kim@example.com yesterday", "kim@example.com"},
		{"plus addressing", "use kim+shop@example.co.uk", "kim+shop@example.co.uk"},
		{"no address", "no email here", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := verification.ExtractEmail(tc.text); got != tc.want {
				t.Errorf("ExtractEmail(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestFlagPolicy(t *testing.T) {
	policy := verification.FlagPolicy{Keywords: verification.DefaultFlagKeywords}

	note := "opened a chargeback last month"
	order := &testOrder{
		tags:         []string{"VIP", "Fraud-Review"},
		customerTags: []string{"wholesale"},
		customerNote: &note,
	}

	flags := policy.Check(order.build())
	if len(flags) != 2 {
		t.Fatalf("flags = %v, want 2 entries", flags)
	}
	if flags[0] != "order_tag:Fraud-Review" {
		t.Errorf("flags[0] = %q, want order_tag:Fraud-Review", flags[0])
	}
	if flags[1] != "customer_note:chargeback" {
		t.Errorf("flags[1] = %q, want customer_note:chargeback", flags[1])
	}
}

func TestFlagPolicyCleanOrder(t *testing.T) {
	policy := verification.FlagPolicy{Keywords: verification.DefaultFlagKeywords}

	order := &testOrder{tags: []string{"VIP"}, customerTags: []string{"loyal"}}
	if flags := policy.Check(order.build()); len(flags) != 0 {
		t.Errorf("flags = %v, want none", flags)
	}
}
