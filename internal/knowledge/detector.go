package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/pkg/agent"
)

type service struct {
	store    Store
	embedder agent.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates the knowledge system over a store and an embedding client.
func New(store Store, embedder agent.Embedder, cfg Config, logger *slog.Logger) System {
	return &service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("system", "knowledge"),
	}
}

func (s *service) FindDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.store.FindDocument(ctx, id)
}

func (s *service) Publish(
	ctx context.Context,
	cmd CreateDocumentCommand,
	chunks []ChunkInsert,
) (*Document, error) {
	return s.store.CreateDocument(ctx, cmd, chunks)
}

// ChunkAndEmbed splits content per the configured chunk size and embeds each
// piece. Returns ErrNotConfigured from the embedder when no embedding
// service is available; callers decide whether publication proceeds without
// vectors.
func (s *service) ChunkAndEmbed(ctx context.Context, content string) ([]ChunkInsert, error) {
	pieces := SplitChunks(content, s.cfg.ChunkSize)
	chunks := make([]ChunkInsert, 0, len(pieces))

	for i, piece := range pieces {
		embedding, err := s.embedder.Embed(ctx, piece)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, ChunkInsert{
			Position:  i,
			Content:   piece,
			Embedding: embedding,
		})
	}

	return chunks, nil
}

func (s *service) AppendInstruction(ctx context.Context, section, content string) (*Document, error) {
	existing, err := s.store.FindDocumentByTitle(ctx, KindInstructions, section)
	if err == nil {
		return s.store.AppendContent(ctx, existing.ID, content)
	}

	return s.store.CreateDocument(ctx, CreateDocumentCommand{
		Kind:    KindInstructions,
		Title:   section,
		Content: content,
		Tags:    []string{"instructions"},
	}, nil)
}

func (s *service) TitlesByTag(ctx context.Context, tag string) ([]string, error) {
	return s.store.TitlesByTag(ctx, tag)
}

func (s *service) FindNearest(ctx context.Context, text string, intentTag *string) (*Match, error) {
	if !s.embedder.Configured() {
		s.logger.Warn("duplicate detection skipped, embedder not configured")
		return nil, nil
	}

	if limit := s.cfg.EmbedCharLimit; len(text) > limit {
		text = text[:limit]
	}

	candidate, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}

	chunks, err := s.store.CandidateChunks(ctx, intentTag, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidate chunks: %w", err)
	}

	// Intent-scoped retrieval can miss cross-intent duplicates; fall back to
	// the full corpus when the scoped set is empty.
	if len(chunks) == 0 && intentTag != nil {
		chunks, err = s.store.CandidateChunks(ctx, nil, s.cfg.CandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("load candidate chunks: %w", err)
		}
	}

	type scored struct {
		chunk      Chunk
		similarity float64
	}

	matches := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		sim := Cosine(candidate, c.Embedding)
		if sim >= s.cfg.RetrievalFloor {
			matches = append(matches, scored{chunk: c, similarity: sim})
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})
	if len(matches) > s.cfg.TopK {
		matches = matches[:s.cfg.TopK]
	}

	best := matches[0]
	return &Match{
		DocumentID:      best.chunk.DocumentID,
		DocumentTitle:   best.chunk.DocumentTitle,
		ChunkID:         best.chunk.ID,
		Similarity:      best.similarity,
		IsHardDuplicate: best.similarity > s.cfg.HardDuplicate,
	}, nil
}
