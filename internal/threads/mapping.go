package threads

import (
	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "threads", "t").
	Project("id", "ID").
	Project("provider_ref", "ProviderRef").
	Project("subject", "Subject").
	Project("customer_email", "CustomerEmail").
	Project("state", "State").
	Project("intent", "Intent").
	Project("verification_status", "VerificationStatus").
	Project("human_handled", "HumanHandled").
	Project("human_handler", "HumanHandler").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("resolved_at", "ResolvedAt")

var defaultSort = query.SortField{
	Field:      "UpdatedAt",
	Descending: true,
}

var messageProjection = query.
	NewProjectionMap("public", "thread_messages", "m").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("direction", "Direction").
	Project("sender", "Sender").
	Project("body", "Body").
	Project("created_at", "CreatedAt")

// Filters contains optional filtering criteria for thread queries.
// Nil fields are ignored.
type Filters struct {
	State              *string `json:"state,omitempty"`
	Intent             *string `json:"intent,omitempty"`
	VerificationStatus *string `json:"verification_status,omitempty"`
	HumanHandled       *bool   `json:"human_handled,omitempty"`
	CustomerEmail      *string `json:"customer_email,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("State", f.State).
		WhereEquals("Intent", f.Intent).
		WhereEquals("VerificationStatus", f.VerificationStatus).
		WhereEquals("HumanHandled", f.HumanHandled).
		WhereContains("CustomerEmail", f.CustomerEmail)
}

func scanThread(s repository.Scanner) (Thread, error) {
	var t Thread
	err := s.Scan(
		&t.ID,
		&t.ProviderRef,
		&t.Subject,
		&t.CustomerEmail,
		&t.State,
		&t.Intent,
		&t.VerificationStatus,
		&t.HumanHandled,
		&t.HumanHandler,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ResolvedAt,
	)
	return t, err
}

func scanMessage(s repository.Scanner) (Message, error) {
	var m Message
	err := s.Scan(
		&m.ID,
		&m.ThreadID,
		&m.Direction,
		&m.Sender,
		&m.Body,
		&m.CreatedAt,
	)
	return m, err
}
