package escalation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// System defines the public contract for escalation operations.
type System interface {
	// Escalate creates and sends a supervisor notice for a thread. Returns
	// ErrRecentlyNotified when a notice was already sent inside the dedup
	// window; escalation side effects are a policy, not a hard invariant.
	Escalate(ctx context.Context, threadID uuid.UUID, reason string, flags []string) (*Email, error)

	// ProcessReply parses a supervisor reply on the thread's outstanding
	// notice and dispatches exactly one action. Duplicate delivery of the
	// same reply yields ErrAlreadyProcessed without a second dispatch.
	ProcessReply(ctx context.Context, threadID uuid.UUID, body string) (*DispatchResult, error)

	// Outstanding returns the thread's unanswered notice, or ErrNoOutstanding.
	Outstanding(ctx context.Context, threadID uuid.UUID) (*Email, error)
}

// Store is the persistence contract for escalation notices.
type Store interface {
	Find(ctx context.Context, id uuid.UUID) (*Email, error)
	Create(ctx context.Context, cmd CreateCommand) (*Email, error)
	// Outstanding returns the newest unanswered notice for a thread,
	// or ErrNoOutstanding.
	Outstanding(ctx context.Context, threadID uuid.UUID) (*Email, error)
	// SentSince reports whether any notice for the thread was created
	// after the cutoff.
	SentSince(ctx context.Context, threadID uuid.UUID, cutoff time.Time) (bool, error)
	// RecordSend attaches the provider message id or send failure.
	RecordSend(ctx context.Context, id uuid.UUID, messageID *string, sendErr *string) error
	// ClaimResponse atomically marks the notice as responded with the parsed
	// type and content. Reports false when the notice was already claimed.
	ClaimResponse(ctx context.Context, id uuid.UUID, respType ResponseType, content string) (bool, error)
}

// KnowledgeIntake receives substantial supervisor content as a candidate for
// knowledge extraction. Satisfied by the learning system.
type KnowledgeIntake interface {
	SubmitCandidate(ctx context.Context, threadID uuid.UUID, content string) error
}

// InstructionAppender appends supervisor guidance to a named instruction
// section. Satisfied by the knowledge system.
type InstructionAppender interface {
	AppendInstruction(ctx context.Context, section, content string) error
}
