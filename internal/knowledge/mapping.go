package knowledge

import (
	"encoding/json"
	"fmt"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "knowledge_documents", "k").
	Project("id", "ID").
	Project("kind", "Kind").
	Project("title", "Title").
	Project("content", "Content").
	Project("tags", "Tags").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d    Document
		tags []byte
	)

	err := s.Scan(
		&d.ID,
		&d.Kind,
		&d.Title,
		&d.Content,
		&tags,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return d, err
	}

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return d, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	return d, nil
}

func scanChunk(s repository.Scanner) (Chunk, error) {
	var (
		c         Chunk
		embedding []byte
	)

	err := s.Scan(
		&c.ID,
		&c.DocumentID,
		&c.DocumentTitle,
		&c.Position,
		&c.Content,
		&embedding,
	)
	if err != nil {
		return c, err
	}

	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &c.Embedding); err != nil {
			return c, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}

	return c, nil
}
