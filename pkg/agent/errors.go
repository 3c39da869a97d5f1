package agent

import "errors"

var (
	// ErrNotConfigured indicates no API credentials are present.
	ErrNotConfigured = errors.New("agent not configured")
	// ErrEmptyCompletion indicates the service returned no usable output.
	ErrEmptyCompletion = errors.New("empty completion")
)
