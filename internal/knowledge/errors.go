package knowledge

import "errors"

// Domain errors for knowledge operations.
var (
	ErrNotFound  = errors.New("knowledge document not found")
	ErrDuplicate = errors.New("knowledge document already exists")
)
