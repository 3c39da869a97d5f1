// Package knowledge implements the knowledge-base domain: published documents,
// their content chunks with embeddings, and vector duplicate detection over
// those chunks.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// DocumentKind distinguishes customer-facing articles from agent instructions.
type DocumentKind string

const (
	KindArticle      DocumentKind = "article"
	KindInstructions DocumentKind = "instructions"
)

// Document is one published knowledge-base entry.
type Document struct {
	ID        uuid.UUID    `json:"id"`
	Kind      DocumentKind `json:"kind"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Tags      []string     `json:"tags"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Chunk is one embedded slice of a document's content, the unit of
// nearest-neighbor retrieval.
type Chunk struct {
	ID            uuid.UUID `json:"id"`
	DocumentID    uuid.UUID `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	Position      int       `json:"position"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"embedding"`
}

// Match reports the nearest existing document to a candidate text.
/// A hard duplicate is reported, not blocked: it lowers the odds of
// auto-approval downstream but never prevents proposal creation.
type Match struct {
	DocumentID      uuid.UUID `json:"document_id"`
	DocumentTitle   string    `json:"document_title"`
	ChunkID         uuid.UUID `json:"chunk_id"`
	Similarity      float64   `json:"similarity"`
	IsHardDuplicate bool      `json:"is_hard_duplicate"`
}

// CreateDocumentCommand carries the data needed to publish a document.
type CreateDocumentCommand struct {
	Kind    DocumentKind `json:"kind"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Tags    []string     `json:"tags"`
}

// ChunkInsert carries one chunk of a document being published.
type ChunkInsert struct {
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}
