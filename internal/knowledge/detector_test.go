package knowledge_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/knowledge"
)

type fakeStore struct {
	knowledge.Store

	chunks       []knowledge.Chunk
	scopedCalls  []*string
	scopedEmpty  bool
	documentByID map[uuid.UUID]*knowledge.Document
}

func (f *fakeStore) CandidateChunks(ctx context.Context, tag *string, limit int) ([]knowledge.Chunk, error) {
	f.scopedCalls = append(f.scopedCalls, tag)
	if tag != nil && f.scopedEmpty {
		return nil, nil
	}
	return f.chunks, nil
}

type fakeEmbedder struct {
	configured bool
	vector     []float32
	calls      int
}

func (f *fakeEmbedder) Configured() bool { return f.configured }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

func testConfig(t *testing.T) knowledge.Config {
	t.Helper()
	cfg := knowledge.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	return cfg
}

func chunk(doc uuid.UUID, title string, embedding []float32) knowledge.Chunk {
	return knowledge.Chunk{
		ID:            uuid.New(),
		DocumentID:    doc,
		DocumentTitle: title,
		Embedding:     embedding,
	}
}

func TestFindNearest(t *testing.T) {
	logger := slog.Default()

	t.Run("unconfigured embedder skips detection", func(t *testing.T) {
		store := &fakeStore{}
		sys := knowledge.New(store, &fakeEmbedder{configured: false}, testConfig(t), logger)

		match, err := sys.FindNearest(context.Background(), "candidate text", nil)
		if err != nil {
			t.Fatalf("FindNearest error: %v", err)
		}
		if match != nil {
			t.Errorf("match = %+v, want nil", match)
		}
	})

	t.Run("returns best match above floor", func(t *testing.T) {
		near := uuid.New()
		far := uuid.New()
		store := &fakeStore{chunks: []knowledge.Chunk{
			chunk(far, "Far Doc", []float32{0, 1, 0}),
			chunk(near, "Near Doc", []float32{1, 0.1, 0}),
		}}
		sys := knowledge.New(store, &fakeEmbedder{configured: true, vector: []float32{1, 0, 0}}, testConfig(t), logger)

		match, err := sys.FindNearest(context.Background(), "candidate", nil)
		if err != nil {
			t.Fatalf("FindNearest error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a match")
		}
		if match.DocumentID != near {
			t.Errorf("DocumentID = %s, want %s", match.DocumentID, near)
		}
		if match.IsHardDuplicate != true {
			t.Errorf("IsHardDuplicate = %v, want true (similarity %f)", match.IsHardDuplicate, match.Similarity)
		}
	})

	t.Run("nothing above floor yields nil", func(t *testing.T) {
		store := &fakeStore{chunks: []knowledge.Chunk{
			chunk(uuid.New(), "Unrelated", []float32{0, 1, 0}),
		}}
		sys := knowledge.New(store, &fakeEmbedder{configured: true, vector: []float32{1, 0, 0}}, testConfig(t), logger)

		match, err := sys.FindNearest(context.Background(), "candidate", nil)
		if err != nil {
			t.Fatalf("FindNearest error: %v", err)
		}
		if match != nil {
			t.Errorf("match = %+v, want nil", match)
		}
	})

	t.Run("moderate similarity is not a hard duplicate", func(t *testing.T) {
		doc := uuid.New()
		// cos(angle) ≈ 0.8 against the candidate axis.
		store := &fakeStore{chunks: []knowledge.Chunk{
			chunk(doc, "Related Doc", []float32{0.8, 0.6, 0}),
		}}
		sys := knowledge.New(store, &fakeEmbedder{configured: true, vector: []float32{1, 0, 0}}, testConfig(t), logger)

		match, err := sys.FindNearest(context.Background(), "candidate", nil)
		if err != nil {
			t.Fatalf("FindNearest error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a match")
		}
		if match.IsHardDuplicate {
			t.Errorf("similarity %f flagged as hard duplicate", match.Similarity)
		}
	})

	t.Run("empty intent scope falls back to full corpus", func(t *testing.T) {
		doc := uuid.New()
		store := &fakeStore{
			chunks:      []knowledge.Chunk{chunk(doc, "Doc", []float32{1, 0, 0})},
			scopedEmpty: true,
		}
		sys := knowledge.New(store, &fakeEmbedder{configured: true, vector: []float32{1, 0, 0}}, testConfig(t), logger)

		intent := "refund_request"
		match, err := sys.FindNearest(context.Background(), "candidate", &intent)
		if err != nil {
			t.Fatalf("FindNearest error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a fallback match")
		}
		if len(store.scopedCalls) != 2 {
			t.Fatalf("CandidateChunks called %d times, want 2", len(store.scopedCalls))
		}
		if store.scopedCalls[0] == nil || store.scopedCalls[1] != nil {
			t.Errorf("call scope order wrong: %v", store.scopedCalls)
		}
	})
}
