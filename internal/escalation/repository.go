package escalation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

const emailColumns = `id, thread_id, recipient, subject, body, message_id, send_error,
		response_received, response_type, response_content, responded_at, created_at`

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the Postgres-backed escalation notice store.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "escalation"),
	}
}

func (s *store) Find(ctx context.Context, id uuid.UUID) (*Email, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, s.db, q, args, scanEmail)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (s *store) Create(ctx context.Context, cmd CreateCommand) (*Email, error) {
	insertQ := fmt.Sprintf(`
		INSERT INTO escalation_emails(thread_id, recipient, subject, body)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, emailColumns)

	e, err := repository.QueryOne(ctx, s.db, insertQ,
		[]any{cmd.ThreadID, cmd.Recipient, cmd.Subject, cmd.Body},
		scanEmail,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	s.logger.Info("escalation email recorded",
		"id", e.ID,
		"thread_id", e.ThreadID,
		"recipient", e.Recipient,
	)
	return &e, nil
}

func (s *store) Outstanding(ctx context.Context, threadID uuid.UUID) (*Email, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereEquals("ThreadID", threadID)
	qb.WhereEquals("ResponseReceived", false)
	q, args := qb.BuildSingleOrNull()

	e, err := repository.QueryOne(ctx, s.db, q, args, scanEmail)
	if err != nil {
		return nil, repository.MapError(err, ErrNoOutstanding, ErrDuplicate)
	}
	return &e, nil
}

func (s *store) SentSince(ctx context.Context, threadID uuid.UUID, cutoff time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM escalation_emails WHERE thread_id = $1 AND created_at > $2)",
		threadID, cutoff,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent escalation: %w", err)
	}
	return exists, nil
}

func (s *store) RecordSend(ctx context.Context, id uuid.UUID, messageID *string, sendErr *string) error {
	err := repository.ExecExpectOne(ctx, s.db,
		"UPDATE escalation_emails SET message_id = $1, send_error = $2 WHERE id = $3",
		messageID, sendErr, id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *store) ClaimResponse(
	ctx context.Context,
	id uuid.UUID,
	respType ResponseType,
	content string,
) (bool, error) {
	// The response_received guard makes this a check-and-set: concurrent
	// delivery of the same reply claims the notice exactly once.
	claimed, err := repository.Claim(ctx, s.db, `
		UPDATE escalation_emails
		SET response_received = true, response_type = $1,
			response_content = $2, responded_at = NOW()
		WHERE id = $3 AND response_received = false`,
		respType, content, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim escalation response: %w", err)
	}

	if claimed {
		s.logger.Info("escalation response claimed", "id", id, "type", respType)
	}
	return claimed, nil
}
