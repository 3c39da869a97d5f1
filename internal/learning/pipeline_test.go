package learning_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/knowledge"
	"github.com/stillpoint/parley/internal/learning"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/pkg/archive"
	"github.com/stillpoint/parley/pkg/pagination"
)

type fakeLearningStore struct {
	proposals map[uuid.UUID]*learning.Proposal
	analyses  map[uuid.UUID]*learning.Analysis
}

func newFakeLearningStore() *fakeLearningStore {
	return &fakeLearningStore{
		proposals: map[uuid.UUID]*learning.Proposal{},
		analyses:  map[uuid.UUID]*learning.Analysis{},
	}
}

func (f *fakeLearningStore) FindProposal(ctx context.Context, id uuid.UUID) (*learning.Proposal, error) {
	if p, ok := f.proposals[id]; ok {
		return p, nil
	}
	return nil, learning.ErrNotFound
}

func (f *fakeLearningStore) ProposalsByThread(ctx context.Context, threadID uuid.UUID) ([]learning.Proposal, error) {
	var out []learning.Proposal
	for _, p := range f.proposals {
		if p.ThreadID == threadID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeLearningStore) FindExisting(
	ctx context.Context,
	threadID uuid.UUID,
	ptype learning.ProposalType,
	title string,
) (*learning.Proposal, error) {
	for _, p := range f.proposals {
		if p.ThreadID == threadID && p.Type == ptype && p.Title == title &&
			p.Status != learning.StatusRejected {
			return p, nil
		}
	}
	return nil, learning.ErrNotFound
}

func (f *fakeLearningStore) CreateProposal(ctx context.Context, cmd learning.CreateProposalCommand) (*learning.Proposal, error) {
	p := &learning.Proposal{
		ID:              uuid.New(),
		ThreadID:        cmd.ThreadID,
		Type:            cmd.Type,
		Title:           cmd.Title,
		Summary:         cmd.Summary,
		Content:         cmd.Content,
		Confidence:      cmd.Confidence,
		DialogueQuality: cmd.DialogueQuality,
		Similarity:      cmd.Similarity,
		DuplicateOf:     cmd.DuplicateOf,
		AutoApproved:    cmd.AutoApproved,
		Status:          cmd.Status,
	}
	f.proposals[p.ID] = p
	return p, nil
}

func (f *fakeLearningStore) Decide(
	ctx context.Context,
	id uuid.UUID,
	status learning.ProposalStatus,
	decidedBy string,
) (bool, error) {
	p, ok := f.proposals[id]
	if !ok || p.Status != learning.StatusPending {
		return false, nil
	}
	p.Status = status
	p.DecidedBy = &decidedBy
	return true, nil
}

func (f *fakeLearningStore) SetStatus(ctx context.Context, id uuid.UUID, status learning.ProposalStatus) error {
	if p, ok := f.proposals[id]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakeLearningStore) SetPublished(ctx context.Context, id uuid.UUID, docID uuid.UUID) error {
	if p, ok := f.proposals[id]; ok {
		p.PublishedDocID = &docID
	}
	return nil
}

func (f *fakeLearningStore) UpsertAnalysis(ctx context.Context, a learning.Analysis) (*learning.Analysis, error) {
	stored := a
	stored.ID = uuid.New()
	f.analyses[a.ThreadID] = &stored
	return &stored, nil
}

func (f *fakeLearningStore) AnalysisByThread(ctx context.Context, threadID uuid.UUID) (*learning.Analysis, error) {
	if a, ok := f.analyses[threadID]; ok {
		return a, nil
	}
	return nil, learning.ErrNoAnalysis
}

type fakeThreadSource struct {
	threads.System

	thread   *threads.Thread
	messages []threads.Message
}

func (f *fakeThreadSource) Find(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	return f.thread, nil
}

func (f *fakeThreadSource) Messages(ctx context.Context, id uuid.UUID) ([]threads.Message, error) {
	return f.messages, nil
}

func (f *fakeThreadSource) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters threads.Filters,
) (*pagination.PageResult[threads.Thread], error) {
	return nil, nil
}

type fakeKnowledge struct {
	knowledge.System

	match       *knowledge.Match
	titles      []string
	published   []knowledge.CreateDocumentCommand
	publishErr  error
	appended    []string
	findNearest int
}

func (f *fakeKnowledge) TitlesByTag(ctx context.Context, tag string) ([]string, error) {
	return f.titles, nil
}

func (f *fakeKnowledge) FindNearest(ctx context.Context, text string, intentTag *string) (*knowledge.Match, error) {
	f.findNearest++
	return f.match, nil
}

func (f *fakeKnowledge) ChunkAndEmbed(ctx context.Context, content string) ([]knowledge.ChunkInsert, error) {
	return []knowledge.ChunkInsert{{Position: 0, Content: content, Embedding: []float32{1}}}, nil
}

func (f *fakeKnowledge) Publish(
	ctx context.Context,
	cmd knowledge.CreateDocumentCommand,
	chunks []knowledge.ChunkInsert,
) (*knowledge.Document, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, cmd)
	return &knowledge.Document{ID: uuid.New(), Kind: cmd.Kind, Title: cmd.Title, Content: cmd.Content}, nil
}

func (f *fakeKnowledge) AppendInstruction(ctx context.Context, section, content string) (*knowledge.Document, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.appended = append(f.appended, section)
	return &knowledge.Document{ID: uuid.New(), Kind: knowledge.KindInstructions, Title: section}, nil
}

type fakeExtractor struct {
	output string
	err    error
	calls  int
}

func (f *fakeExtractor) Configured() bool { return true }

func (f *fakeExtractor) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func noopArchive(t *testing.T) archive.System {
	t.Helper()
	cfg := &archive.Config{}
	sys, err := archive.New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("archive.New error: %v", err)
	}
	return sys
}

type pipelineFixture struct {
	store     *fakeLearningStore
	threads   *fakeThreadSource
	knowledge *fakeKnowledge
	extractor *fakeExtractor
	system    learning.System
	threadID  uuid.UUID
}

func newPipeline(t *testing.T, messageCount int, extraction string) *pipelineFixture {
	t.Helper()

	cfg := &learning.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	threadID := uuid.New()
	intent := "refund_request"

	msgs := make([]threads.Message, 0, messageCount)
	for i := 0; i < messageCount; i++ {
		direction := threads.DirectionInbound
		if i%2 == 1 {
			direction = threads.DirectionOutbound
		}
		msgs = append(msgs, threads.Message{
			Direction: direction,
			Body:      fmt.Sprintf("message %d", i),
		})
	}

	f := &pipelineFixture{
		store: newFakeLearningStore(),
		threads: &fakeThreadSource{
			thread:   &threads.Thread{ID: threadID, State: threads.StateResolved, Intent: &intent},
			messages: msgs,
		},
		knowledge: &fakeKnowledge{},
		extractor: &fakeExtractor{output: extraction},
		threadID:  threadID,
	}

	f.system = learning.NewPipeline(
		f.store, f.threads, f.knowledge, f.extractor, noopArchive(t), cfg, slog.Default(),
	)
	return f
}

const goodExtraction = `{
	"dialogueQuality": 0.8,
	"proposals": [{
		"type": "kb_article",
		"title": "Returns Window",
		"summary": "Returns accepted for 30 days.",
		"proposedContent": "Returns are accepted within 30 days of delivery.",
		"confidence": 0.9
	}]
}`

func TestAnalyzeTooFewMessages(t *testing.T) {
	f := newPipeline(t, 2, goodExtraction)

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.ProposalsGenerated != 0 {
		t.Errorf("ProposalsGenerated = %d, want 0", analysis.ProposalsGenerated)
	}
	if analysis.DialogueQuality != 0 {
		t.Errorf("DialogueQuality = %f, want 0", analysis.DialogueQuality)
	}
	if len(f.store.proposals) != 0 {
		t.Errorf("created %d proposals, want 0", len(f.store.proposals))
	}
	if f.extractor.calls != 0 {
		t.Errorf("extraction called %d times, want 0", f.extractor.calls)
	}
}

func TestAnalyzeAutoApprovesAndPublishes(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.ProposalsGenerated != 1 || analysis.AutoApproved != 1 || analysis.Pending != 0 {
		t.Errorf("analysis = %+v, want 1 generated, 1 auto-approved", analysis)
	}
	if len(f.knowledge.published) != 1 {
		t.Fatalf("published %d documents, want 1", len(f.knowledge.published))
	}
	if f.knowledge.published[0].Title != "Returns Window" {
		t.Errorf("published title = %q", f.knowledge.published[0].Title)
	}

	for _, p := range f.store.proposals {
		if p.Status != learning.StatusApproved {
			t.Errorf("proposal status = %s, want approved", p.Status)
		}
		if p.PublishedDocID == nil {
			t.Error("approved proposal has no published document")
		}
	}
}

func TestAnalyzePublishFailureRevertsToPending(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)
	f.knowledge.publishErr = errors.New("embedding service down")

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.AutoApproved != 0 || analysis.Pending != 1 {
		t.Errorf("analysis = %+v, want the proposal counted pending", analysis)
	}
	for _, p := range f.store.proposals {
		if p.Status != learning.StatusPending {
			t.Errorf("proposal status = %s, want pending after publish failure", p.Status)
		}
	}
}

func TestAnalyzeHighSimilarityStaysPending(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)
	f.knowledge.match = &knowledge.Match{
		DocumentID:      uuid.New(),
		Similarity:      0.92,
		IsHardDuplicate: true,
	}

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.Pending != 1 || analysis.AutoApproved != 0 {
		t.Errorf("analysis = %+v, want pending only", analysis)
	}
	for _, p := range f.store.proposals {
		if p.DuplicateOf == nil {
			t.Error("duplicate pointer not recorded")
		}
		if p.Status != learning.StatusPending {
			t.Errorf("status = %s, want pending", p.Status)
		}
	}
	if len(f.knowledge.published) != 0 {
		t.Errorf("published %d documents, want 0", len(f.knowledge.published))
	}
}

func TestAnalyzeLowQualityStops(t *testing.T) {
	lowQuality := `{"dialogueQuality": 0.3, "proposals": [{
		"type": "kb_article", "title": "T", "summary": "s",
		"proposedContent": "c", "confidence": 0.99
	}]}`
	f := newPipeline(t, 4, lowQuality)

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.ProposalsGenerated != 0 {
		t.Errorf("ProposalsGenerated = %d, want 0", analysis.ProposalsGenerated)
	}
	if analysis.DialogueQuality != 0.3 {
		t.Errorf("DialogueQuality = %f, want 0.3", analysis.DialogueQuality)
	}
	if f.knowledge.findNearest != 0 {
		t.Errorf("duplicate detection ran %d times, want 0", f.knowledge.findNearest)
	}
}

func TestAnalyzeUnparseableExtraction(t *testing.T) {
	f := newPipeline(t, 4, "I could not think of anything useful.")

	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if analysis.ProposalsGenerated != 0 || analysis.DialogueQuality != 0 {
		t.Errorf("analysis = %+v, want neutral zero result", analysis)
	}
}

func TestAnalyzeRerunIsIdempotent(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)

	if _, err := f.system.Analyze(context.Background(), f.threadID); err != nil {
		t.Fatalf("first Analyze error: %v", err)
	}
	analysis, err := f.system.Analyze(context.Background(), f.threadID)
	if err != nil {
		t.Fatalf("second Analyze error: %v", err)
	}

	if len(f.store.proposals) != 1 {
		t.Errorf("proposals = %d, want 1 after re-run", len(f.store.proposals))
	}
	if len(f.knowledge.published) != 1 {
		t.Errorf("published = %d, want 1 after re-run", len(f.knowledge.published))
	}
	if analysis.ProposalsGenerated != 1 || analysis.AutoApproved != 1 {
		t.Errorf("analysis = %+v, want existing proposal counted", analysis)
	}
}

func TestApproveIdempotent(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)

	p, err := f.store.CreateProposal(context.Background(), learning.CreateProposalCommand{
		ThreadID: f.threadID,
		Type:     learning.TypeKBArticle,
		Title:    "Manual Article",
		Content:  "Some reviewed content.",
		Status:   learning.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateProposal error: %v", err)
	}

	first, err := f.system.Approve(context.Background(), p.ID, "reviewer@example.com")
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if first.Status != learning.StatusApproved {
		t.Errorf("Status = %s, want approved", first.Status)
	}

	second, err := f.system.Approve(context.Background(), p.ID, "reviewer@example.com")
	if err != nil {
		t.Fatalf("second Approve error: %v", err)
	}
	if second.Status != learning.StatusApproved {
		t.Errorf("second Status = %s", second.Status)
	}
	if len(f.knowledge.published) != 1 {
		t.Errorf("published %d documents, want 1 (no double publish)", len(f.knowledge.published))
	}
}

func TestApproveAfterRejection(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)

	p, err := f.store.CreateProposal(context.Background(), learning.CreateProposalCommand{
		ThreadID: f.threadID,
		Type:     learning.TypeKBArticle,
		Title:    "Rejected Article",
		Content:  "Content.",
		Status:   learning.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateProposal error: %v", err)
	}

	if _, err := f.system.Reject(context.Background(), p.ID, "reviewer@example.com"); err != nil {
		t.Fatalf("Reject error: %v", err)
	}

	if _, err := f.system.Approve(context.Background(), p.ID, "reviewer@example.com"); !errors.Is(err, learning.ErrAlreadyDecided) {
		t.Errorf("Approve after rejection error = %v, want ErrAlreadyDecided", err)
	}
}

func TestSubmitCandidate(t *testing.T) {
	f := newPipeline(t, 4, goodExtraction)

	content := "Our carrier marks packages delivered a day early; tell customers to allow 24 hours."
	if err := f.system.SubmitCandidate(context.Background(), f.threadID, content); err != nil {
		t.Fatalf("SubmitCandidate error: %v", err)
	}

	if len(f.store.proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(f.store.proposals))
	}
	for _, p := range f.store.proposals {
		if p.Status != learning.StatusPending {
			t.Errorf("status = %s, want pending (supervisor content is never auto-approved)", p.Status)
		}
	}

	// Duplicate submission of the same content is a no-op.
	if err := f.system.SubmitCandidate(context.Background(), f.threadID, content); err != nil {
		t.Fatalf("second SubmitCandidate error: %v", err)
	}
	if len(f.store.proposals) != 1 {
		t.Errorf("proposals = %d after resubmission, want 1", len(f.store.proposals))
	}
}
