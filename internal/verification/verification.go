// Package verification implements the identity-verification gate that must
// succeed before sensitive order-related actions proceed. Each attempt is
// recorded as an append-only VerificationRecord; a verified record is cached
// and short-circuits all later attempts for the thread.
package verification

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a verification attempt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusNotFound Status = "not_found"
	StatusFlagged  Status = "flagged"
	// StatusMismatch exists in the schema but is not currently produced:
	// email/order ownership mismatch is a logged soft check.
	StatusMismatch Status = "mismatch"
)

// CustomerSnapshot is the denormalized customer view persisted with a
// verified record for downstream display.
type CustomerSnapshot struct {
	Name        string `json:"name"`
	OrdersCount int    `json:"orders_count"`
	TotalSpent  string `json:"total_spent"`
}

// OrderSnapshot is the denormalized order view persisted with a verified record.
type OrderSnapshot struct {
	Status    string   `json:"status"`
	Tracking  []string `json:"tracking"`
	LineItems []string `json:"line_items"`
}

// Record is one persisted outcome of a verification attempt for a thread.
// At most one record per thread carries StatusVerified.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	ThreadID    uuid.UUID         `json:"thread_id"`
	Status      Status            `json:"status"`
	OrderNumber *string           `json:"order_number"`
	Email       *string           `json:"email"`
	Flags       []string          `json:"flags"`
	Customer    *CustomerSnapshot `json:"customer"`
	Order       *OrderSnapshot    `json:"order"`
	Note        *string           `json:"note"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Request carries the inputs to a verification attempt. KnownEmail and
// KnownOrderNumber take precedence over extraction from MessageText.
type Request struct {
	ThreadID         uuid.UUID `json:"thread_id"`
	KnownEmail       *string   `json:"known_email"`
	KnownOrderNumber *string   `json:"known_order_number"`
	MessageText      string    `json:"message_text"`
}

// InsertCommand carries the data persisted for one verification attempt.
type InsertCommand struct {
	ThreadID    uuid.UUID
	Status      Status
	OrderNumber *string
	Email       *string
	Flags       []string
	Customer    *CustomerSnapshot
	Order       *OrderSnapshot
	Note        *string
}
