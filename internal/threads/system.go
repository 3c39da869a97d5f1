package threads

import (
	"context"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/pagination"
)

// System defines the public contract for thread domain operations.
type System interface {
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Thread], error)

	Find(ctx context.Context, id uuid.UUID) (*Thread, error)
	FindByProviderRef(ctx context.Context, ref string) (*Thread, error)
	Create(ctx context.Context, cmd CreateCommand) (*Thread, error)

	// Transition moves a thread to a new lifecycle state. The move is
	// validated against the transition table and applied with an optimistic
	// state check; a concurrent change yields ErrStateConflict.
	Transition(ctx context.Context, id uuid.UUID, to State, cause Cause) (*Thread, error)

	// Revive returns a resolved thread to the new state. Resolved is terminal
	// for the transition table; only fresh inbound activity revives a thread,
	// which is why this is a separate operation rather than a transition.
	Revive(ctx context.Context, id uuid.UUID) (*Thread, error)

	SetIntent(ctx context.Context, id uuid.UUID, intent string) error
	SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error
	AssignHuman(ctx context.Context, id uuid.UUID, handler string) error

	AppendMessage(ctx context.Context, id uuid.UUID, cmd AppendMessageCommand) (*Message, error)
	Messages(ctx context.Context, id uuid.UUID) ([]Message, error)
}
