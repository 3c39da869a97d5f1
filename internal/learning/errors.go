package learning

import "errors"

// Domain errors for learning operations.
var (
	ErrNotFound       = errors.New("learning proposal not found")
	ErrDuplicate      = errors.New("learning proposal already exists")
	ErrAlreadyDecided = errors.New("proposal decision is final")
	ErrNoAnalysis     = errors.New("thread has not been analyzed")
)
