package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/drafts"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/pkg/agent"
	"github.com/stillpoint/parley/pkg/mailer"
)

const draftSystemPrompt = `You draft replies for a customer support team.
Write a complete, polite reply to the customer using the supervisor's guidance.
Match the tone of the prior conversation. Output only the reply body.`

type router struct {
	store        Store
	threads      threads.System
	drafts       drafts.System
	mail         mailer.System
	generator    agent.Generator
	intake       KnowledgeIntake
	instructions InstructionAppender
	config       *Config
	logger       *slog.Logger
}

// NewRouter wires the escalation system. The knowledge intake and instruction
// appender are optional; when nil the corresponding sub-actions are skipped.
func NewRouter(
	store Store,
	threadSys threads.System,
	draftSys drafts.System,
	mail mailer.System,
	generator agent.Generator,
	intake KnowledgeIntake,
	instructions InstructionAppender,
	config *Config,
	logger *slog.Logger,
) System {
	return &router{
		store:        store,
		threads:      threadSys,
		drafts:       draftSys,
		mail:         mail,
		generator:    generator,
		intake:       intake,
		instructions: instructions,
		config:       config,
		logger:       logger.With("system", "escalation"),
	}
}

func (r *router) Escalate(
	ctx context.Context,
	threadID uuid.UUID,
	reason string,
	flags []string,
) (*Email, error) {
	cutoff := time.Now().Add(-r.config.DedupWindowDuration())
	recent, err := r.store.SentSince(ctx, threadID, cutoff)
	if err != nil {
		return nil, err
	}
	if recent {
		return nil, ErrRecentlyNotified
	}

	thread, err := r.threads.Find(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("find thread for escalation: %w", err)
	}

	email, err := r.store.Create(ctx, CreateCommand{
		ThreadID:  threadID,
		Recipient: r.config.SupervisorAddress,
		Subject:   fmt.Sprintf("[Escalation] %s", thread.Subject),
		Body:      composeNotice(thread, reason, flags),
	})
	if err != nil {
		return nil, err
	}

	r.send(ctx, email, thread.ProviderRef)
	return r.store.Find(ctx, email.ID)
}

// send delivers the notice and records the result. Delivery failure is
// recorded, not returned: the notice row already exists and a later reply
// can still be routed against it.
func (r *router) send(ctx context.Context, email *Email, providerRef string) {
	if !r.mail.Configured() {
		r.logger.Warn("mailer not configured, escalation notice unsent",
			"id", email.ID,
			"thread_id", email.ThreadID,
		)
		return
	}

	messageID, err := r.mail.Send(ctx, email.Recipient, email.Subject, email.Body, providerRef)
	if err != nil {
		msg := err.Error()
		if recErr := r.store.RecordSend(ctx, email.ID, nil, &msg); recErr != nil {
			r.logger.Error("record send failure", "id", email.ID, "error", recErr)
		}
		r.logger.Error("escalation notice send failed", "id", email.ID, "error", err)
		return
	}

	if err := r.store.RecordSend(ctx, email.ID, &messageID, nil); err != nil {
		r.logger.Error("record send", "id", email.ID, "error", err)
	}

	if _, err := r.mail.ApplyLabel(ctx, providerRef, r.config.LabelName); err != nil {
		r.logger.Warn("apply escalation label",
			"thread_ref", providerRef,
			"label", r.config.LabelName,
			"error", err,
		)
	}
}

func (r *router) Outstanding(ctx context.Context, threadID uuid.UUID) (*Email, error) {
	return r.store.Outstanding(ctx, threadID)
}

func (r *router) ProcessReply(
	ctx context.Context,
	threadID uuid.UUID,
	body string,
) (*DispatchResult, error) {
	email, err := r.store.Outstanding(ctx, threadID)
	if err != nil {
		return nil, err
	}

	parsed := ParseResponse(body)

	claimed, err := r.store.ClaimResponse(ctx, email.ID, parsed.Type, parsed.Content)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}

	result := &DispatchResult{
		EmailID:  email.ID,
		ThreadID: threadID,
		Type:     parsed.Type,
		Tags:     parsed.Tags,
		Content:  parsed.Content,
	}

	switch parsed.Type {
	case TypeRelay:
		r.dispatchRelay(ctx, result, parsed)
	case TypeInstruction:
		r.dispatchInstruction(ctx, result, parsed)
	case TypeResolve:
		r.dispatchResolve(ctx, result, parsed)
	case TypeDraft:
		r.dispatchDraft(ctx, result, parsed)
	case TypeTakeover:
		r.dispatchTakeover(ctx, result)
	}

	r.logger.Info("supervisor reply dispatched",
		"thread_id", threadID,
		"email_id", email.ID,
		"type", parsed.Type,
		"outcomes", len(result.Outcomes),
	)
	return result, nil
}

func (r *router) record(result *DispatchResult, step string, err error) {
	outcome := Outcome{Step: step}
	if err != nil {
		outcome.Error = err.Error()
		r.logger.Warn("dispatch sub-action failed",
			"thread_id", result.ThreadID,
			"step", step,
			"error", err,
		)
	}
	result.Outcomes = append(result.Outcomes, outcome)
}

func (r *router) dispatchRelay(ctx context.Context, result *DispatchResult, parsed ParsedResponse) {
	_, err := r.drafts.Create(ctx, drafts.CreateCommand{
		ThreadID: result.ThreadID,
		Kind:     drafts.KindReply,
		Body:     parsed.Content,
		Source:   "supervisor",
	})
	r.record(result, StepSaveReplyDraft, err)

	r.offerKnowledge(ctx, result, parsed)
}

func (r *router) dispatchInstruction(ctx context.Context, result *DispatchResult, parsed ParsedResponse) {
	if r.instructions != nil {
		err := r.instructions.AppendInstruction(ctx, r.config.InstructionSection, parsed.Content)
		r.record(result, StepAppendInstruction, err)
	}

	_, err := r.drafts.Create(ctx, drafts.CreateCommand{
		ThreadID: result.ThreadID,
		Kind:     drafts.KindInterim,
		Body:     "Thanks for your patience. We're looking into this and will follow up shortly.",
		Source:   "router",
	})
	r.record(result, StepSaveInterimDraft, err)
}

func (r *router) dispatchResolve(ctx context.Context, result *DispatchResult, parsed ParsedResponse) {
	_, err := r.threads.Transition(ctx, result.ThreadID, threads.StateResolved, threads.CauseSupervisor)
	r.record(result, StepResolveThread, err)

	if parsed.Content != "" {
		_, err = r.drafts.Create(ctx, drafts.CreateCommand{
			ThreadID: result.ThreadID,
			Kind:     drafts.KindResolution,
			Body:     parsed.Content,
			Source:   "supervisor",
		})
		r.record(result, StepSaveResolutionDraft, err)
	}

	r.offerKnowledge(ctx, result, parsed)
}

func (r *router) dispatchDraft(ctx context.Context, result *DispatchResult, parsed ParsedResponse) {
	messages, err := r.threads.Messages(ctx, result.ThreadID)
	if err != nil {
		r.record(result, StepLoadMessages, err)
		return
	}

	body, err := r.generator.Generate(ctx, draftSystemPrompt, draftPrompt(parsed.Content, messages))
	if err != nil {
		r.record(result, StepGenerateDraft, err)
		return
	}
	r.record(result, StepGenerateDraft, nil)

	_, err = r.drafts.Create(ctx, drafts.CreateCommand{
		ThreadID: result.ThreadID,
		Kind:     drafts.KindSupervised,
		Body:     body,
		Source:   "agent",
	})
	r.record(result, StepSaveSupervisedDraft, err)
}

func (r *router) dispatchTakeover(ctx context.Context, result *DispatchResult) {
	_, err := r.threads.Transition(ctx, result.ThreadID, threads.StateHumanHandling, threads.CauseSupervisor)
	r.record(result, StepMarkHumanHandling, err)

	err = r.threads.AssignHuman(ctx, result.ThreadID, r.config.SupervisorAddress)
	r.record(result, StepAssignHandler, err)
}

// offerKnowledge submits supervisor content for knowledge extraction when it
// is explicitly tagged or substantial enough to be worth mining.
func (r *router) offerKnowledge(ctx context.Context, result *DispatchResult, parsed ParsedResponse) {
	if r.intake == nil {
		return
	}
	if !parsed.KnowledgeTagged && len(parsed.Content) < r.config.KnowledgeThreshold {
		return
	}

	err := r.intake.SubmitCandidate(ctx, result.ThreadID, parsed.Content)
	r.record(result, StepSubmitKnowledge, err)
}

func composeNotice(thread *threads.Thread, reason string, flags []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A support thread needs your attention.\n\n")
	fmt.Fprintf(&b, "Subject: %s\n", thread.Subject)
	if thread.CustomerEmail != nil {
		fmt.Fprintf(&b, "Customer: %s\n", *thread.CustomerEmail)
	}
	if thread.Intent != nil {
		fmt.Fprintf(&b, "Intent: %s\n", *thread.Intent)
	}
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(flags, ", "))
	}

	b.WriteString("\nReply to this message to act on the thread:\n")
	b.WriteString("  (no tag)      relay your reply to the customer as a draft\n")
	b.WriteString("  [DRAFT]       have the agent draft a reply from your guidance\n")
	b.WriteString("  [INSTRUCTION] save your guidance as a standing instruction\n")
	b.WriteString("  [RESOLVE]     resolve the thread, optionally with a closing note\n")
	b.WriteString("  [TAKEOVER]    take over the thread yourself\n")
	b.WriteString("  [KB]          additionally offer your reply for the knowledge base\n")

	return b.String()
}

func draftPrompt(guidance string, messages []threads.Message) string {
	var b strings.Builder

	b.WriteString("Supervisor guidance:\n")
	b.WriteString(guidance)
	b.WriteString("\n\nConversation so far:\n")

	for _, m := range messages {
		role := "Agent"
		if m.Direction == threads.DirectionInbound {
			role = "Customer"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, m.Body)
	}

	return b.String()
}
