package learning

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for learning operations.
type System interface {
	// Analyze runs the full pipeline over a resolved thread and returns the
	// per-thread summary. Safe to re-run: proposals are idempotent on
	// thread+type+title and the summary is upserted on thread id.
	Analyze(ctx context.Context, threadID uuid.UUID) (*Analysis, error)

	// SubmitCandidate offers supervisor-authored content as a knowledge
	// candidate outside the resolution flow. The content is duplicate-checked
	// and stored as a pending proposal.
	SubmitCandidate(ctx context.Context, threadID uuid.UUID, content string) error

	// Approve finalizes a pending proposal and publishes it. Approving an
	// already-approved proposal is a no-op; approving a rejected one returns
	// ErrAlreadyDecided.
	Approve(ctx context.Context, id uuid.UUID, approver string) (*Proposal, error)

	// Reject finalizes a pending proposal without publishing.
	Reject(ctx context.Context, id uuid.UUID, reviewer string) (*Proposal, error)

	FindProposal(ctx context.Context, id uuid.UUID) (*Proposal, error)
	ProposalsByThread(ctx context.Context, threadID uuid.UUID) ([]Proposal, error)
	AnalysisByThread(ctx context.Context, threadID uuid.UUID) (*Analysis, error)
}

// Store is the persistence contract for proposals and analyses.
type Store interface {
	FindProposal(ctx context.Context, id uuid.UUID) (*Proposal, error)
	ProposalsByThread(ctx context.Context, threadID uuid.UUID) ([]Proposal, error)

	// FindExisting returns a pending or approved proposal matching
	// thread+type+title, the idempotency key for proposal creation,
	// or ErrNotFound.
	FindExisting(ctx context.Context, threadID uuid.UUID, ptype ProposalType, title string) (*Proposal, error)

	CreateProposal(ctx context.Context, cmd CreateProposalCommand) (*Proposal, error)

	// Decide atomically moves a pending proposal to the given final status.
	// Reports false when the proposal was not pending.
	Decide(ctx context.Context, id uuid.UUID, status ProposalStatus, decidedBy string) (bool, error)

	// SetStatus overwrites a proposal's status unconditionally. Used to
	// revert a failed auto-publication back to pending.
	SetStatus(ctx context.Context, id uuid.UUID, status ProposalStatus) error

	// SetPublished records the knowledge document a proposal produced.
	SetPublished(ctx context.Context, id uuid.UUID, docID uuid.UUID) error

	// UpsertAnalysis writes the per-thread summary, keyed on thread id.
	UpsertAnalysis(ctx context.Context, a Analysis) (*Analysis, error)
	AnalysisByThread(ctx context.Context, threadID uuid.UUID) (*Analysis, error)
}
