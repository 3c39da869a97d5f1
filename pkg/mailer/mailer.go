// Package mailer defines the outbound messaging contract used to deliver
// escalation notices and apply provider-side thread labels. Concrete
// transports (Gmail, SMTP) live in the integration layer; this package ships
// the interface and a disabled implementation for environments without one.
package mailer

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured indicates no outbound transport is available.
var ErrNotConfigured = errors.New("mailer not configured")

// System delivers messages to a human supervisor and labels provider threads.
type System interface {
	// Configured reports whether an outbound transport is available.
	Configured() bool
	// Send delivers a message and returns the provider message id.
	Send(ctx context.Context, to, subject, htmlBody, threadRef string) (string, error)
	// ApplyLabel applies a provider-side label to the referenced thread.
	ApplyLabel(ctx context.Context, threadRef, labelName string) (bool, error)
}

type disabled struct {
	logger *slog.Logger
}

// Disabled returns a mailer that records every send attempt in the log and
// reports ErrNotConfigured. Escalation paths treat the error as a recorded
// sub-action failure, never as a fatal condition.
func Disabled(logger *slog.Logger) System {
	return &disabled{logger: logger.With("system", "mailer")}
}

func (d *disabled) Configured() bool {
	return false
}

func (d *disabled) Send(ctx context.Context, to, subject, htmlBody, threadRef string) (string, error) {
	d.logger.Warn("send skipped, mailer not configured", "to", to, "subject", subject)
	return "", ErrNotConfigured
}

func (d *disabled) ApplyLabel(ctx context.Context, threadRef, labelName string) (bool, error) {
	d.logger.Warn("label skipped, mailer not configured", "label", labelName)
	return false, ErrNotConfigured
}
