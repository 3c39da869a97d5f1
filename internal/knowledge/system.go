package knowledge

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for knowledge domain operations.
type System interface {
	FindDocument(ctx context.Context, id uuid.UUID) (*Document, error)

	// Publish creates a document and its embedded chunks atomically.
	Publish(ctx context.Context, cmd CreateDocumentCommand, chunks []ChunkInsert) (*Document, error)

	// ChunkAndEmbed splits content into chunks and embeds each piece,
	// producing the inserts Publish consumes.
	ChunkAndEmbed(ctx context.Context, content string) ([]ChunkInsert, error)

	// AppendInstruction appends content to the named instructions section,
	// creating the section document if it does not exist.
	AppendInstruction(ctx context.Context, section, content string) (*Document, error)

	// TitlesByTag returns document titles carrying the given tag, used to
	// bias knowledge extraction away from existing material.
	TitlesByTag(ctx context.Context, tag string) ([]string, error)

	// FindNearest embeds candidate text and returns the closest existing
	// document above the retrieval floor, or nil when nothing qualifies or
	// the embedding service is unavailable.
	FindNearest(ctx context.Context, text string, intentTag *string) (*Match, error)
}

// Store is the persistence contract for documents and chunks.
type Store interface {
	FindDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	FindDocumentByTitle(ctx context.Context, kind DocumentKind, title string) (*Document, error)
	CreateDocument(ctx context.Context, cmd CreateDocumentCommand, chunks []ChunkInsert) (*Document, error)
	AppendContent(ctx context.Context, id uuid.UUID, content string) (*Document, error)
	TitlesByTag(ctx context.Context, tag string) ([]string, error)

	// CandidateChunks returns embedded chunks for similarity scoring,
	// optionally restricted to documents carrying the given tag.
	CandidateChunks(ctx context.Context, tag *string, limit int) ([]Chunk, error)
}
