// Package drafts stores customer-facing draft messages produced by the
// escalation router and the automated agent. Drafts are saved for operator
// review and never sent automatically.
package drafts

import (
	"time"

	"github.com/google/uuid"
)

// Kind categorizes what produced a draft and how it should be presented.
type Kind string

const (
	// KindReply relays a supervisor's answer to the customer.
	KindReply Kind = "reply"
	// KindInterim tells the customer their issue is being looked into.
	KindInterim Kind = "interim"
	// KindResolution accompanies a thread resolution.
	KindResolution Kind = "resolution"
	// KindSupervised is generated from supervisor guidance plus the
	// customer's prior messages.
	KindSupervised Kind = "supervised"
)

// Draft is one stored draft message awaiting operator review.
type Draft struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	Kind      Kind      `json:"kind"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCommand carries the data needed to save a draft.
type CreateCommand struct {
	ThreadID uuid.UUID `json:"thread_id"`
	Kind     Kind      `json:"kind"`
	Body     string    `json:"body"`
	Source   string    `json:"source"`
}
