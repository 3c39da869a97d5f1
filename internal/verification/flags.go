package verification

import (
	"fmt"
	"strings"

	"github.com/stillpoint/parley/internal/orders"
)

// DefaultFlagKeywords are the risk markers checked against account and order
// metadata when no override is configured.
var DefaultFlagKeywords = []string{
	"chargeback", "fraud", "abusive", "blocked", "dispute", "scam",
}

// FlagPolicy inspects order and customer metadata for known risk markers.
// Matching is case-insensitive substring; every match is reported as a
// labeled flag string so an escalation can explain itself.
type FlagPolicy struct {
	Keywords []string
}

// Check returns every labeled flag found on the order and its owning
// customer. Tag matches carry the full offending tag; note matches carry the
// matched keyword.
func (p FlagPolicy) Check(order *orders.Order) []string {
	var flags []string

	if order == nil {
		return flags
	}

	flags = append(flags, p.checkTags("order_tag", order.Tags)...)
	flags = append(flags, p.checkNote("order_note", order.Note)...)

	if order.Customer != nil {
		flags = append(flags, p.checkTags("customer_tag", order.Customer.Tags)...)
		flags = append(flags, p.checkNote("customer_note", order.Customer.Note)...)
	}

	return flags
}

func (p FlagPolicy) checkTags(label string, tags []string) []string {
	var flags []string
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				flags = append(flags, fmt.Sprintf("%s:%s", label, tag))
				break
			}
		}
	}
	return flags
}

func (p FlagPolicy) checkNote(label string, note *string) []string {
	if note == nil || *note == "" {
		return nil
	}

	var flags []string
	lower := strings.ToLower(*note)
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			flags = append(flags, fmt.Sprintf("%s:%s", label, kw))
		}
	}
	return flags
}
