package threads

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/pagination"
	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

const threadColumns = `id, provider_ref, subject, customer_email, state, intent,
		verification_status, human_handled, human_handler, created_at, updated_at, resolved_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a thread repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "threads"),
		pagination: pagination,
	}
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Thread], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Subject", "CustomerEmail")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count threads: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanThread)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Thread, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanThread)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) FindByProviderRef(ctx context.Context, ref string) (*Thread, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ProviderRef", ref)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanThread)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Thread, error) {
	insertQ := fmt.Sprintf(`
		INSERT INTO threads(provider_ref, subject, customer_email, state)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, threadColumns)

	t, err := repository.QueryOne(ctx, r.db, insertQ,
		[]any{cmd.ProviderRef, cmd.Subject, cmd.CustomerEmail, StateNew},
		scanThread,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("thread created", "id", t.ID, "provider_ref", t.ProviderRef)
	return &t, nil
}

func (r *repo) Transition(ctx context.Context, id uuid.UUID, to State, cause Cause) (*Thread, error) {
	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, to)
	}

	// Entry to resolved clears human handling and stamps resolution in the
	// same statement. WHERE state = prior state makes the move a check-and-set
	// so concurrent events on the same thread cannot both win.
	var transitionQ string
	if to == StateResolved {
		transitionQ = fmt.Sprintf(`
			UPDATE threads
			SET state = $1, human_handled = false, human_handler = NULL,
				resolved_at = NOW(), updated_at = NOW()
			WHERE id = $2 AND state = $3
			RETURNING %s`, threadColumns)
	} else {
		transitionQ = fmt.Sprintf(`
			UPDATE threads
			SET state = $1, updated_at = NOW()
			WHERE id = $2 AND state = $3
			RETURNING %s`, threadColumns)
	}

	t, err := repository.QueryOne(ctx, r.db, transitionQ,
		[]any{to, id, current.State},
		scanThread,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrStateConflict, ErrDuplicate)
	}

	r.logger.Info("thread transitioned",
		"id", id,
		"from", current.State,
		"to", to,
		"cause", cause,
	)
	return &t, nil
}

func (r *repo) Revive(ctx context.Context, id uuid.UUID) (*Thread, error) {
	reviveQ := fmt.Sprintf(`
		UPDATE threads
		SET state = $1, resolved_at = NULL, updated_at = NOW()
		WHERE id = $2 AND state = $3
		RETURNING %s`, threadColumns)

	t, err := repository.QueryOne(ctx, r.db, reviveQ,
		[]any{StateNew, id, StateResolved},
		scanThread,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrStateConflict, ErrDuplicate)
	}

	r.logger.Info("thread revived", "id", id)
	return &t, nil
}

func (r *repo) SetIntent(ctx context.Context, id uuid.UUID, intent string) error {
	err := repository.ExecExpectOne(ctx, r.db,
		"UPDATE threads SET intent = $1, updated_at = NOW() WHERE id = $2",
		intent, id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	err := repository.ExecExpectOne(ctx, r.db,
		"UPDATE threads SET verification_status = $1, updated_at = NOW() WHERE id = $2",
		status, id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) AssignHuman(ctx context.Context, id uuid.UUID, handler string) error {
	err := repository.ExecExpectOne(ctx, r.db,
		"UPDATE threads SET human_handled = true, human_handler = $1, updated_at = NOW() WHERE id = $2",
		handler, id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("thread assigned to human", "id", id, "handler", handler)
	return nil
}

func (r *repo) AppendMessage(ctx context.Context, id uuid.UUID, cmd AppendMessageCommand) (*Message, error) {
	insertQ := `
		INSERT INTO thread_messages(thread_id, direction, sender, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, thread_id, direction, sender, body, created_at`

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Message, error) {
		msg, err := repository.QueryOne(ctx, tx, insertQ,
			[]any{id, cmd.Direction, cmd.Sender, cmd.Body},
			scanMessage,
		)
		if err != nil {
			return Message{}, fmt.Errorf("insert message: %w", err)
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE threads SET updated_at = NOW() WHERE id = $1",
			id,
		); err != nil {
			return Message{}, fmt.Errorf("touch thread: %w", err)
		}

		return msg, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) Messages(ctx context.Context, id uuid.UUID) ([]Message, error) {
	qb := query.NewBuilder(messageProjection, query.SortField{Field: "CreatedAt"})
	qb.WhereEquals("ThreadID", id)
	q, args := qb.Build()

	msgs, err := repository.QueryMany(ctx, r.db, q, args, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}
