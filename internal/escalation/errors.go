package escalation

import "errors"

// Domain errors for escalation operations.
var (
	ErrNotFound         = errors.New("escalation email not found")
	ErrDuplicate        = errors.New("escalation email already exists")
	ErrNoOutstanding    = errors.New("no outstanding escalation email for thread")
	ErrAlreadyProcessed = errors.New("escalation response already processed")
	ErrRecentlyNotified = errors.New("supervisor recently notified for thread")
)
