package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

const recordColumns = `id, thread_id, status, order_number, email, flags,
		customer_snapshot, order_snapshot, note, created_at`

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the Postgres-backed verification record store.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "verification"),
	}
}

func (s *store) FindVerified(ctx context.Context, threadID uuid.UUID) (*Record, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereEquals("ThreadID", threadID)
	qb.WhereEquals("Status", string(StatusVerified))
	q, args := qb.BuildSingleOrNull()

	r, err := repository.QueryOne(ctx, s.db, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &r, nil
}

func (s *store) Insert(ctx context.Context, cmd InsertCommand) (*Record, error) {
	flags := cmd.Flags
	if flags == nil {
		flags = []string{}
	}

	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("marshal flags: %w", err)
	}

	var customerJSON, orderJSON []byte
	if cmd.Customer != nil {
		if customerJSON, err = json.Marshal(cmd.Customer); err != nil {
			return nil, fmt.Errorf("marshal customer snapshot: %w", err)
		}
	}
	if cmd.Order != nil {
		if orderJSON, err = json.Marshal(cmd.Order); err != nil {
			return nil, fmt.Errorf("marshal order snapshot: %w", err)
		}
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO verification_records(
			thread_id, status, order_number, email, flags,
			customer_snapshot, order_snapshot, note
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, recordColumns)

	insertArgs := []any{
		cmd.ThreadID,
		cmd.Status,
		cmd.OrderNumber,
		cmd.Email,
		flagsJSON,
		nullable(customerJSON),
		nullable(orderJSON),
		cmd.Note,
	}

	r, err := repository.QueryOne(ctx, s.db, insertQ, insertArgs, scanRecord)
	if err != nil {
		// The partial unique index on (thread_id) WHERE status = 'verified'
		// makes the verified cache an atomic check-and-set: the loser of a
		// concurrent race adopts the winner's record.
		if cmd.Status == StatusVerified && repository.IsUniqueViolation(err) {
			s.logger.Info("verified record already exists, returning cached", "thread_id", cmd.ThreadID)
			return s.FindVerified(ctx, cmd.ThreadID)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	s.logger.Info("verification recorded",
		"id", r.ID,
		"thread_id", r.ThreadID,
		"status", r.Status,
		"flags", len(r.Flags),
	)
	return &r, nil
}

func (s *store) Latest(ctx context.Context, threadID uuid.UUID) (*Record, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereEquals("ThreadID", threadID)
	q, args := qb.BuildSingleOrNull()

	r, err := repository.QueryOne(ctx, s.db, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &r, nil
}

func (s *store) History(ctx context.Context, threadID uuid.UUID) ([]Record, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereEquals("ThreadID", threadID)
	q, args := qb.Build()

	records, err := repository.QueryMany(ctx, s.db, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query verification history: %w", err)
	}
	return records, nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
