package verification

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract of the verification gate.
type System interface {
	// Verify runs a verification attempt for a thread. A prior verified
	// record short-circuits without consulting the lookup collaborator.
	// External failures never surface as errors: they fail closed to a
	// pending record with the cause noted for operator visibility.
	Verify(ctx context.Context, req Request) (*Record, error)

	// Latest returns the most recent verification record for a thread.
	Latest(ctx context.Context, threadID uuid.UUID) (*Record, error)

	// History returns all verification records for a thread, newest first.
	History(ctx context.Context, threadID uuid.UUID) ([]Record, error)
}

// Store is the persistence contract the gate operates against.
type Store interface {
	// FindVerified returns the thread's verified record, or ErrNotFound.
	FindVerified(ctx context.Context, threadID uuid.UUID) (*Record, error)
	// Insert appends a verification attempt. Inserting a second verified
	// record for a thread loses the race to the partial unique index; the
	// existing verified record is returned instead.
	Insert(ctx context.Context, cmd InsertCommand) (*Record, error)
	// Latest returns the most recent record for a thread, or ErrNotFound.
	Latest(ctx context.Context, threadID uuid.UUID) (*Record, error)
	// History returns all records for a thread, newest first.
	History(ctx context.Context, threadID uuid.UUID) ([]Record, error)
}

// StatusMirror denormalizes the latest verification outcome onto the thread
// row for fast filtering. Satisfied by threads.System.
type StatusMirror interface {
	SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error
}
