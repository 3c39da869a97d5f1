package threads

import "errors"

// Domain errors for thread operations.
var (
	ErrNotFound          = errors.New("thread not found")
	ErrDuplicate         = errors.New("thread already exists")
	ErrUnknownState      = errors.New("unknown thread state")
	ErrInvalidTransition = errors.New("invalid thread transition")
	ErrStateConflict     = errors.New("thread state changed concurrently")
)
