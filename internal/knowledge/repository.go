package knowledge

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

const documentColumns = "id, kind, title, content, tags, created_at, updated_at"

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the Postgres-backed knowledge store.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "knowledge"),
	}
}

func (s *store) FindDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, s.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (s *store) FindDocumentByTitle(ctx context.Context, kind DocumentKind, title string) (*Document, error) {
	qb := query.NewBuilder(projection)
	qb.WhereEquals("Kind", string(kind))
	qb.WhereEquals("Title", title)
	q, args := qb.BuildSingleOrNull()

	d, err := repository.QueryOne(ctx, s.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (s *store) CreateDocument(
	ctx context.Context,
	cmd CreateDocumentCommand,
	chunks []ChunkInsert,
) (*Document, error) {
	tags := cmd.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO knowledge_documents(kind, title, content, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, documentColumns)

	d, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (Document, error) {
		doc, err := repository.QueryOne(ctx, tx, insertQ,
			[]any{cmd.Kind, cmd.Title, cmd.Content, tagsJSON},
			scanDocument,
		)
		if err != nil {
			return Document{}, fmt.Errorf("insert document: %w", err)
		}

		for _, c := range chunks {
			embJSON, err := json.Marshal(c.Embedding)
			if err != nil {
				return Document{}, fmt.Errorf("marshal embedding: %w", err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO knowledge_chunks(document_id, position, content, embedding)
				 VALUES ($1, $2, $3, $4)`,
				doc.ID, c.Position, c.Content, embJSON,
			); err != nil {
				return Document{}, fmt.Errorf("insert chunk %d: %w", c.Position, err)
			}
		}

		return doc, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	s.logger.Info("knowledge document created",
		"id", d.ID,
		"kind", d.Kind,
		"title", d.Title,
		"chunks", len(chunks),
	)
	return &d, nil
}

func (s *store) AppendContent(ctx context.Context, id uuid.UUID, content string) (*Document, error) {
	appendQ := fmt.Sprintf(`
		UPDATE knowledge_documents
		SET content = content || $1, updated_at = NOW()
		WHERE id = $2
		RETURNING %s`, documentColumns)

	d, err := repository.QueryOne(ctx, s.db, appendQ,
		[]any{"\n\n" + content, id},
		scanDocument,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (s *store) TitlesByTag(ctx context.Context, tag string) ([]string, error) {
	q := `
		SELECT title FROM knowledge_documents
		WHERE tags @> $1
		ORDER BY updated_at DESC`

	tagJSON, err := json.Marshal([]string{tag})
	if err != nil {
		return nil, fmt.Errorf("marshal tag: %w", err)
	}

	titles, err := repository.QueryMany(ctx, s.db, q, []any{tagJSON},
		func(sc repository.Scanner) (string, error) {
			var t string
			err := sc.Scan(&t)
			return t, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("query titles by tag: %w", err)
	}
	return titles, nil
}

func (s *store) CandidateChunks(ctx context.Context, tag *string, limit int) ([]Chunk, error) {
	q := `
		SELECT c.id, c.document_id, k.title, c.position, c.content, c.embedding
		FROM knowledge_chunks c
		JOIN knowledge_documents k ON k.id = c.document_id`
	args := []any{}

	if tag != nil && *tag != "" {
		tagJSON, err := json.Marshal([]string{*tag})
		if err != nil {
			return nil, fmt.Errorf("marshal tag: %w", err)
		}
		q += " WHERE k.tags @> $1"
		args = append(args, tagJSON)
	}

	q += fmt.Sprintf(" ORDER BY c.id LIMIT %d", limit)

	chunks, err := repository.QueryMany(ctx, s.db, q, args, scanChunk)
	if err != nil {
		return nil, fmt.Errorf("query candidate chunks: %w", err)
	}
	return chunks, nil
}
