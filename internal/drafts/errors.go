package drafts

import "errors"

// Domain errors for draft operations.
var (
	ErrNotFound  = errors.New("draft not found")
	ErrDuplicate = errors.New("draft already exists")
	ErrEmptyBody = errors.New("draft body must not be empty")
)
