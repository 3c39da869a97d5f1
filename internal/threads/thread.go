// Package threads implements the support thread lifecycle domain. It owns the
// thread entity, its message log, and the state machine governing what the
// automated agent may do at each stage. Transitions are validated against a
// central table and applied with an optimistic state check so concurrent
// events against the same thread serialize cleanly.
package threads

import (
	"time"

	"github.com/google/uuid"
)

// Thread represents a single customer conversation. Threads are never
// deleted, only transitioned.
type Thread struct {
	ID                 uuid.UUID  `json:"id"`
	ProviderRef        string     `json:"provider_ref"`
	Subject            string     `json:"subject"`
	CustomerEmail      *string    `json:"customer_email"`
	State              State      `json:"state"`
	Intent             *string    `json:"intent"`
	VerificationStatus *string    `json:"verification_status"`
	HumanHandled       bool       `json:"human_handled"`
	HumanHandler       *string    `json:"human_handler"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ResolvedAt         *time.Time `json:"resolved_at"`
}

// Direction distinguishes customer messages from agent or supervisor output.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is one message within a thread's conversation log.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	Direction Direction `json:"direction"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCommand carries the data needed to register a new thread.
type CreateCommand struct {
	ProviderRef   string  `json:"provider_ref"`
	Subject       string  `json:"subject"`
	CustomerEmail *string `json:"customer_email"`
}

// AppendMessageCommand carries the data needed to append to a thread's log.
type AppendMessageCommand struct {
	Direction Direction `json:"direction"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
}
