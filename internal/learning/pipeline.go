package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stillpoint/parley/internal/knowledge"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/pkg/agent"
	"github.com/stillpoint/parley/pkg/archive"
)

type pipeline struct {
	store     Store
	threads   threads.System
	knowledge knowledge.System
	generator agent.Generator
	archive   archive.System
	config    *Config
	logger    *slog.Logger
}

// NewPipeline wires the learning system.
func NewPipeline(
	store Store,
	threadSys threads.System,
	knowledgeSys knowledge.System,
	generator agent.Generator,
	arc archive.System,
	config *Config,
	logger *slog.Logger,
) System {
	return &pipeline{
		store:     store,
		threads:   threadSys,
		knowledge: knowledgeSys,
		generator: generator,
		archive:   arc,
		config:    config,
		logger:    logger.With("system", "learning"),
	}
}

// scoredCandidate is an extraction candidate after duplicate detection.
type scoredCandidate struct {
	extractionCandidate
	ptype       ProposalType
	similarity  float64
	duplicateOf *uuid.UUID
}

func (p *pipeline) Analyze(ctx context.Context, threadID uuid.UUID) (*Analysis, error) {
	thread, err := p.threads.Find(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("find thread for analysis: %w", err)
	}

	messages, err := p.threads.Messages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load messages for analysis: %w", err)
	}

	// Too little signal to extract anything: record a zero-quality summary.
	if len(messages) < p.config.MinMessages {
		p.logger.Info("thread too short for analysis",
			"thread_id", threadID,
			"messages", len(messages),
		)
		return p.store.UpsertAnalysis(ctx, Analysis{ThreadID: threadID})
	}

	transcript := buildTranscript(messages)
	p.archiveTranscript(ctx, threadID, transcript)

	existingTitles := p.existingTitles(ctx, thread.Intent)
	result := extract(ctx, p.generator, transcript, existingTitles, p.logger)

	if result.DialogueQuality < p.config.MinDialogueQuality || len(result.Proposals) == 0 {
		p.logger.Info("no usable proposals extracted",
			"thread_id", threadID,
			"quality", result.DialogueQuality,
			"candidates", len(result.Proposals),
		)
		return p.store.UpsertAnalysis(ctx, Analysis{
			ThreadID:        threadID,
			DialogueQuality: result.DialogueQuality,
		})
	}

	scored, err := p.scoreCandidates(ctx, thread.Intent, result.Proposals)
	if err != nil {
		return nil, err
	}

	analysis := Analysis{
		ThreadID:        threadID,
		DialogueQuality: result.DialogueQuality,
	}

	for _, candidate := range scored {
		proposal, created, err := p.persistCandidate(ctx, threadID, result.DialogueQuality, candidate)
		if err != nil {
			p.logger.Error("persist proposal",
				"thread_id", threadID,
				"title", candidate.Title,
				"error", err,
			)
			continue
		}

		analysis.ProposalsGenerated++
		if !created {
			// Re-run hit an existing proposal: count it where it stands.
			if proposal.Status == StatusApproved {
				analysis.AutoApproved++
			} else {
				analysis.Pending++
			}
			continue
		}

		if proposal.AutoApproved {
			if p.publishAndApprove(ctx, proposal) {
				analysis.AutoApproved++
			} else {
				analysis.Pending++
			}
		} else {
			analysis.Pending++
		}
	}

	return p.store.UpsertAnalysis(ctx, analysis)
}

// scoreCandidates runs duplicate detection across the batch with bounded
// concurrency. Detection failure for one candidate degrades that candidate
// to "no match found" rather than failing the batch.
func (p *pipeline) scoreCandidates(
	ctx context.Context,
	intent *string,
	candidates []extractionCandidate,
) ([]scoredCandidate, error) {
	scored := make([]scoredCandidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			ptype, _ := ParseProposalType(candidate.Type)
			sc := scoredCandidate{
				extractionCandidate: candidate,
				ptype:               ptype,
			}

			match, err := p.knowledge.FindNearest(gctx, candidate.ProposedContent, intent)
			switch {
			case err != nil:
				p.logger.Warn("duplicate detection failed",
					"title", candidate.Title,
					"error", err,
				)
			case match != nil:
				sc.similarity = match.Similarity
				sc.duplicateOf = &match.DocumentID
			}

			scored[i] = sc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// persistCandidate inserts the proposal unless a pending or approved one
// already exists for the same thread+type+title. Reports whether a new row
// was created.
func (p *pipeline) persistCandidate(
	ctx context.Context,
	threadID uuid.UUID,
	quality float64,
	candidate scoredCandidate,
) (*Proposal, bool, error) {
	existing, err := p.store.FindExisting(ctx, threadID, candidate.ptype, candidate.Title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	auto := p.config.AutoApprove(
		candidate.ptype,
		candidate.Confidence,
		quality,
		candidate.similarity,
		candidate.ProposedContent,
	)

	proposal, err := p.store.CreateProposal(ctx, CreateProposalCommand{
		ThreadID:        threadID,
		Type:            candidate.ptype,
		Title:           candidate.Title,
		Summary:         candidate.Summary,
		Content:         candidate.ProposedContent,
		Confidence:      candidate.Confidence,
		DialogueQuality: quality,
		Similarity:      candidate.similarity,
		DuplicateOf:     candidate.duplicateOf,
		AutoApproved:    auto,
		Status:          StatusPending,
	})
	if err != nil {
		return nil, false, err
	}
	return proposal, true, nil
}

// publishAndApprove publishes an auto-approved proposal and marks it
// approved. Publication comes first: a publish failure leaves the proposal
// pending so a human can retry, never an approved record with no document.
func (p *pipeline) publishAndApprove(ctx context.Context, proposal *Proposal) bool {
	doc, err := p.publish(ctx, proposal)
	if err != nil {
		p.logger.Error("auto-publication failed, proposal stays pending",
			"id", proposal.ID,
			"type", proposal.Type,
			"error", err,
		)
		return false
	}

	if err := p.store.SetPublished(ctx, proposal.ID, doc.ID); err != nil {
		p.logger.Error("record published document", "id", proposal.ID, "error", err)
	}

	claimed, err := p.store.Decide(ctx, proposal.ID, StatusApproved, "auto")
	if err != nil || !claimed {
		p.logger.Error("mark proposal approved",
			"id", proposal.ID,
			"claimed", claimed,
			"error", err,
		)
		return false
	}

	return true
}

func (p *pipeline) publish(ctx context.Context, proposal *Proposal) (*knowledge.Document, error) {
	switch proposal.Type {
	case TypeKBArticle:
		chunks, err := p.knowledge.ChunkAndEmbed(ctx, proposal.Content)
		if err != nil {
			return nil, fmt.Errorf("embed article content: %w", err)
		}

		doc, err := p.knowledge.Publish(ctx, knowledge.CreateDocumentCommand{
			Kind:    knowledge.KindArticle,
			Title:   proposal.Title,
			Content: proposal.Content,
			Tags:    []string{"learned"},
		}, chunks)
		if err != nil {
			return nil, err
		}

		p.archiveDocument(ctx, doc)
		return doc, nil

	case TypeInstructionUpdate:
		return p.knowledge.AppendInstruction(ctx, proposal.Title, proposal.Content)
	}

	return nil, fmt.Errorf("unpublishable proposal type %q", proposal.Type)
}

func (p *pipeline) SubmitCandidate(ctx context.Context, threadID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	sanitized := Sanitize(content)
	title := candidateTitle(sanitized)

	existing, err := p.store.FindExisting(ctx, threadID, TypeKBArticle, title)
	if err == nil {
		p.logger.Info("knowledge candidate already proposed", "id", existing.ID)
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	var (
		similarity  float64
		duplicateOf *uuid.UUID
	)
	match, err := p.knowledge.FindNearest(ctx, sanitized, nil)
	switch {
	case err != nil:
		p.logger.Warn("duplicate detection failed for candidate", "error", err)
	case match != nil:
		similarity = match.Similarity
		duplicateOf = &match.DocumentID
		if match.IsHardDuplicate {
			p.logger.Info("knowledge candidate duplicates existing document",
				"thread_id", threadID,
				"document", match.DocumentTitle,
				"similarity", match.Similarity,
			)
		}
	}

	// Supervisor content always lands as pending: a human wrote it for one
	// customer, a human decides whether it generalizes.
	_, err = p.store.CreateProposal(ctx, CreateProposalCommand{
		ThreadID:    threadID,
		Type:        TypeKBArticle,
		Title:       title,
		Summary:     "Submitted from a supervisor escalation reply",
		Content:     sanitized,
		Similarity:  similarity,
		DuplicateOf: duplicateOf,
		Status:      StatusPending,
	})
	return err
}

func (p *pipeline) Approve(ctx context.Context, id uuid.UUID, approver string) (*Proposal, error) {
	proposal, err := p.store.FindProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	switch proposal.Status {
	case StatusApproved:
		return proposal, nil
	case StatusRejected:
		return nil, ErrAlreadyDecided
	}

	doc, err := p.publish(ctx, proposal)
	if err != nil {
		return nil, fmt.Errorf("publish proposal: %w", err)
	}
	if err := p.store.SetPublished(ctx, proposal.ID, doc.ID); err != nil {
		p.logger.Error("record published document", "id", proposal.ID, "error", err)
	}

	claimed, err := p.store.Decide(ctx, id, StatusApproved, approver)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race: surface whatever decision won.
		current, err := p.store.FindProposal(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == StatusApproved {
			return current, nil
		}
		return nil, ErrAlreadyDecided
	}

	return p.store.FindProposal(ctx, id)
}

func (p *pipeline) Reject(ctx context.Context, id uuid.UUID, reviewer string) (*Proposal, error) {
	proposal, err := p.store.FindProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	switch proposal.Status {
	case StatusRejected:
		return proposal, nil
	case StatusApproved:
		return nil, ErrAlreadyDecided
	}

	claimed, err := p.store.Decide(ctx, id, StatusRejected, reviewer)
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := p.store.FindProposal(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == StatusRejected {
			return current, nil
		}
		return nil, ErrAlreadyDecided
	}

	return p.store.FindProposal(ctx, id)
}

func (p *pipeline) FindProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return p.store.FindProposal(ctx, id)
}

func (p *pipeline) ProposalsByThread(ctx context.Context, threadID uuid.UUID) ([]Proposal, error) {
	return p.store.ProposalsByThread(ctx, threadID)
}

func (p *pipeline) AnalysisByThread(ctx context.Context, threadID uuid.UUID) (*Analysis, error) {
	return p.store.AnalysisByThread(ctx, threadID)
}

func (p *pipeline) existingTitles(ctx context.Context, intent *string) []string {
	if intent == nil || *intent == "" {
		return nil
	}

	titles, err := p.knowledge.TitlesByTag(ctx, *intent)
	if err != nil {
		p.logger.Warn("load existing knowledge titles", "tag", *intent, "error", err)
		return nil
	}
	return titles
}

func (p *pipeline) archiveTranscript(ctx context.Context, threadID uuid.UUID, transcript string) {
	if !p.archive.Enabled() {
		return
	}

	key := fmt.Sprintf("transcripts/%s/%s.txt", threadID, time.Now().UTC().Format("20060102T150405"))
	if err := p.archive.Store(ctx, key, []byte(transcript), "text/plain"); err != nil {
		p.logger.Warn("archive transcript", "thread_id", threadID, "error", err)
	}
}

func (p *pipeline) archiveDocument(ctx context.Context, doc *knowledge.Document) {
	if !p.archive.Enabled() {
		return
	}

	key := fmt.Sprintf("knowledge/%s/%s.md", doc.Kind, doc.ID)
	if err := p.archive.Store(ctx, key, []byte(doc.Content), "text/markdown"); err != nil {
		p.logger.Warn("archive knowledge document", "id", doc.ID, "error", err)
	}
}

// buildTranscript renders the message log with PII scrubbed per message.
func buildTranscript(messages []threads.Message) string {
	var b strings.Builder

	for _, m := range messages {
		role := "Agent"
		if m.Direction == threads.DirectionInbound {
			role = "Customer"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, Sanitize(m.Body))
	}

	return strings.TrimSpace(b.String())
}

// candidateTitle derives a proposal title from the first line of content.
func candidateTitle(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	const maxTitle = 80
	if len(line) > maxTitle {
		line = strings.TrimSpace(line[:maxTitle]) + "…"
	}
	if line == "" {
		line = "Supervisor note"
	}
	return line
}
