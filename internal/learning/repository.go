package learning

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

const proposalColumns = `id, thread_id, type, title, summary, content, confidence,
		dialogue_quality, similarity, duplicate_of, auto_approved, status,
		decided_by, published_doc_id, created_at, updated_at`

const analysisColumns = `id, thread_id, dialogue_quality, proposals_generated,
		auto_approved, pending, analyzed_at`

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the Postgres-backed learning store.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "learning"),
	}
}

func (s *store) FindProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	q, args := query.NewBuilder(proposalProjection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, s.db, q, args, scanProposal)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (s *store) ProposalsByThread(ctx context.Context, threadID uuid.UUID) ([]Proposal, error) {
	qb := query.NewBuilder(proposalProjection, proposalSort)
	qb.WhereEquals("ThreadID", threadID)
	q, args := qb.Build()

	items, err := repository.QueryMany(ctx, s.db, q, args, scanProposal)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	return items, nil
}

func (s *store) FindExisting(
	ctx context.Context,
	threadID uuid.UUID,
	ptype ProposalType,
	title string,
) (*Proposal, error) {
	qb := query.NewBuilder(proposalProjection, proposalSort)
	qb.WhereEquals("ThreadID", threadID)
	qb.WhereEquals("Type", ptype)
	qb.WhereEquals("Title", title)
	qb.WhereIn("Status", []any{StatusPending, StatusApproved})
	q, args := qb.BuildSingleOrNull()

	p, err := repository.QueryOne(ctx, s.db, q, args, scanProposal)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (s *store) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (*Proposal, error) {
	insertQ := fmt.Sprintf(`
		INSERT INTO learning_proposals(
			thread_id, type, title, summary, content, confidence,
			dialogue_quality, similarity, duplicate_of, auto_approved, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s`, proposalColumns)

	p, err := repository.QueryOne(ctx, s.db, insertQ,
		[]any{
			cmd.ThreadID, cmd.Type, cmd.Title, cmd.Summary, cmd.Content,
			cmd.Confidence, cmd.DialogueQuality, cmd.Similarity,
			cmd.DuplicateOf, cmd.AutoApproved, cmd.Status,
		},
		scanProposal,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	s.logger.Info("learning proposal created",
		"id", p.ID,
		"thread_id", p.ThreadID,
		"type", p.Type,
		"status", p.Status,
	)
	return &p, nil
}

func (s *store) Decide(
	ctx context.Context,
	id uuid.UUID,
	status ProposalStatus,
	decidedBy string,
) (bool, error) {
	// The status guard makes the decision a check-and-set: a proposal leaves
	// pending exactly once.
	claimed, err := repository.Claim(ctx, s.db, `
		UPDATE learning_proposals
		SET status = $1, decided_by = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		status, decidedBy, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("decide proposal: %w", err)
	}
	return claimed, nil
}

func (s *store) SetStatus(ctx context.Context, id uuid.UUID, status ProposalStatus) error {
	err := repository.ExecExpectOne(ctx, s.db,
		"UPDATE learning_proposals SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *store) SetPublished(ctx context.Context, id uuid.UUID, docID uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, s.db,
		"UPDATE learning_proposals SET published_doc_id = $1, updated_at = NOW() WHERE id = $2",
		docID, id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *store) UpsertAnalysis(ctx context.Context, a Analysis) (*Analysis, error) {
	upsertQ := fmt.Sprintf(`
		INSERT INTO resolution_analyses(
			thread_id, dialogue_quality, proposals_generated, auto_approved, pending
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id) DO UPDATE SET
			dialogue_quality = EXCLUDED.dialogue_quality,
			proposals_generated = EXCLUDED.proposals_generated,
			auto_approved = EXCLUDED.auto_approved,
			pending = EXCLUDED.pending,
			analyzed_at = NOW()
		RETURNING %s`, analysisColumns)

	result, err := repository.QueryOne(ctx, s.db, upsertQ,
		[]any{a.ThreadID, a.DialogueQuality, a.ProposalsGenerated, a.AutoApproved, a.Pending},
		scanAnalysis,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert analysis: %w", err)
	}

	s.logger.Info("resolution analysis recorded",
		"thread_id", result.ThreadID,
		"quality", result.DialogueQuality,
		"proposals", result.ProposalsGenerated,
	)
	return &result, nil
}

func (s *store) AnalysisByThread(ctx context.Context, threadID uuid.UUID) (*Analysis, error) {
	qb := query.NewBuilder(analysisProjection)
	qb.WhereEquals("ThreadID", threadID)
	q, args := qb.BuildSingleOrNull()

	a, err := repository.QueryOne(ctx, s.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrNoAnalysis, ErrDuplicate)
	}
	return &a, nil
}
