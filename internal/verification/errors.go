package verification

import "errors"

// Domain errors for verification operations.
var (
	ErrNotFound  = errors.New("verification record not found")
	ErrDuplicate = errors.New("verification record already exists")
)
