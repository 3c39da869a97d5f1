package drafts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

// System defines the public contract for draft operations.
type System interface {
	Find(ctx context.Context, id uuid.UUID) (*Draft, error)
	Create(ctx context.Context, cmd CreateCommand) (*Draft, error)
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]Draft, error)
}

var projection = query.
	NewProjectionMap("public", "drafts", "d").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("kind", "Kind").
	Project("body", "Body").
	Project("source", "Source").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

func scanDraft(s repository.Scanner) (Draft, error) {
	var d Draft
	err := s.Scan(
		&d.ID,
		&d.ThreadID,
		&d.Kind,
		&d.Body,
		&d.Source,
		&d.CreatedAt,
	)
	return d, err
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a draft repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "drafts"),
	}
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Draft, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDraft)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Draft, error) {
	if cmd.Body == "" {
		return nil, ErrEmptyBody
	}

	insertQ := `
		INSERT INTO drafts(thread_id, kind, body, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, thread_id, kind, body, source, created_at`

	d, err := repository.QueryOne(ctx, r.db, insertQ,
		[]any{cmd.ThreadID, cmd.Kind, cmd.Body, cmd.Source},
		scanDraft,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("draft created",
		"id", d.ID,
		"thread_id", d.ThreadID,
		"kind", d.Kind,
	)
	return &d, nil
}

func (r *repo) ListByThread(ctx context.Context, threadID uuid.UUID) ([]Draft, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereEquals("ThreadID", threadID)
	q, args := qb.Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanDraft)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	return items, nil
}
