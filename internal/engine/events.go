package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/escalation"
	"github.com/stillpoint/parley/internal/learning"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/internal/verification"
)

// Engine dispatches lifecycle events against the domain systems.
type Engine struct {
	domain *Domain
	cfg    *EngineSettings
	logger *slog.Logger
}

// EngineSettings is the slice of root configuration the event handlers use.
type EngineSettings struct {
	Sensitive func(intent string) bool
}

// New creates the event engine.
func New(runtime *Runtime, domain *Domain) *Engine {
	return &Engine{
		domain: domain,
		cfg: &EngineSettings{
			Sensitive: runtime.Config.Engine.Sensitive,
		},
		logger: runtime.Logger.With("system", "engine"),
	}
}

// InboundCommand carries one inbound customer message.
type InboundCommand struct {
	ProviderRef   string
	Subject       string
	Sender        string
	CustomerEmail *string
	Body          string
}

// Classification carries the classifier's verdict for a thread's latest
// message. Classification itself happens in the caller's intake pipeline.
type Classification struct {
	Intent        string
	RequiresHuman bool
}

// ClassificationOutcome reports everything a classification event caused.
type ClassificationOutcome struct {
	Thread       *threads.Thread
	Verification *verification.Record
	Escalation   *escalation.Email
}

// HandleInbound ensures a thread exists for the message's provider reference,
// revives it if it was resolved, and appends the message to its log.
func (e *Engine) HandleInbound(ctx context.Context, cmd InboundCommand) (*threads.Thread, error) {
	thread, err := e.domain.Threads.FindByProviderRef(ctx, cmd.ProviderRef)
	switch {
	case errors.Is(err, threads.ErrNotFound):
		thread, err = e.domain.Threads.Create(ctx, threads.CreateCommand{
			ProviderRef:   cmd.ProviderRef,
			Subject:       cmd.Subject,
			CustomerEmail: cmd.CustomerEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("create thread: %w", err)
		}
	case err != nil:
		return nil, err
	case thread.State == threads.StateResolved:
		thread, err = e.domain.Threads.Revive(ctx, thread.ID)
		if errors.Is(err, threads.ErrStateConflict) {
			// Lost a revival race to a concurrent inbound event.
			thread, err = e.domain.Threads.Find(ctx, thread.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("revive thread: %w", err)
		}
	}

	if _, err := e.domain.Threads.AppendMessage(ctx, thread.ID, threads.AppendMessageCommand{
		Direction: threads.DirectionInbound,
		Sender:    cmd.Sender,
		Body:      cmd.Body,
	}); err != nil {
		return nil, fmt.Errorf("append inbound message: %w", err)
	}

	return thread, nil
}

// HandleClassification records the classified intent and routes the thread:
// sensitive intents pass through the verification gate first, flagged or
// human-requested threads escalate, and everything else proceeds.
func (e *Engine) HandleClassification(
	ctx context.Context,
	threadID uuid.UUID,
	c Classification,
	messageText string,
) (*ClassificationOutcome, error) {
	thread, err := e.domain.Threads.Find(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if err := e.domain.Threads.SetIntent(ctx, threadID, c.Intent); err != nil {
		return nil, fmt.Errorf("record intent: %w", err)
	}

	outcome := &ClassificationOutcome{Thread: thread}

	// A thread already with a human stays with the human.
	if thread.State == threads.StateEscalated || thread.State == threads.StateHumanHandling {
		return outcome, nil
	}

	if c.RequiresHuman {
		return e.escalate(ctx, outcome, "classifier requested human review", nil)
	}

	if !e.cfg.Sensitive(c.Intent) {
		outcome.Thread, err = e.domain.Threads.Transition(
			ctx, threadID, threads.StateInProgress, threads.CauseClassification,
		)
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}

	record, err := e.domain.Verification.Verify(ctx, verification.Request{
		ThreadID:    threadID,
		KnownEmail:  thread.CustomerEmail,
		MessageText: messageText,
	})
	if err != nil {
		return nil, fmt.Errorf("verification gate: %w", err)
	}
	outcome.Verification = record

	switch record.Status {
	case verification.StatusVerified:
		outcome.Thread, err = e.domain.Threads.Transition(
			ctx, threadID, threads.StateInProgress, threads.CauseVerification,
		)
	case verification.StatusFlagged:
		return e.escalate(ctx, outcome, "flagged account", record.Flags)
	default:
		// Pending or not found: ask the customer for more information.
		outcome.Thread, err = e.domain.Threads.Transition(
			ctx, threadID, threads.StateAwaitingInfo, threads.CauseVerification,
		)
	}
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// escalate applies the escalated state and sends the supervisor notice.
// A notice suppressed by the dedup window is not an error.
func (e *Engine) escalate(
	ctx context.Context,
	outcome *ClassificationOutcome,
	reason string,
	flags []string,
) (*ClassificationOutcome, error) {
	thread, err := e.domain.Threads.Transition(
		ctx, outcome.Thread.ID, threads.StateEscalated, threads.CauseEscalation,
	)
	if err != nil {
		return nil, err
	}
	outcome.Thread = thread

	email, err := e.domain.Escalation.Escalate(ctx, thread.ID, reason, flags)
	switch {
	case errors.Is(err, escalation.ErrRecentlyNotified):
		e.logger.Info("escalation notice suppressed by dedup window", "thread_id", thread.ID)
	case err != nil:
		// The thread is escalated either way; the missing notice is an
		// operational problem, not a lifecycle one.
		e.logger.Error("send escalation notice", "thread_id", thread.ID, "error", err)
	default:
		outcome.Escalation = email
	}

	return outcome, nil
}

// HandleSupervisorReply routes a supervisor's reply through the response
// router against the thread's outstanding notice. A reply that resolved the
// thread also runs the learning pipeline: the router transitions the thread
// itself, so Resolve never fires for supervisor resolutions.
func (e *Engine) HandleSupervisorReply(
	ctx context.Context,
	threadID uuid.UUID,
	body string,
) (*escalation.DispatchResult, error) {
	result, err := e.domain.Escalation.ProcessReply(ctx, threadID, body)
	if err != nil {
		return nil, err
	}

	if _, err := e.domain.Threads.AppendMessage(ctx, threadID, threads.AppendMessageCommand{
		Direction: threads.DirectionOutbound,
		Sender:    "supervisor",
		Body:      result.Content,
	}); err != nil {
		e.logger.Error("append supervisor message", "thread_id", threadID, "error", err)
	}

	if result.Type == escalation.TypeResolve && result.Succeeded(escalation.StepResolveThread) {
		if _, err := e.domain.Learning.Analyze(ctx, threadID); err != nil {
			e.logger.Error("resolution analysis failed", "thread_id", threadID, "error", err)
		}
	}

	return result, nil
}

// Resolve transitions the thread to resolved and runs the learning pipeline.
// The transition's check-and-set makes the pipeline fire once per resolution
// event; the pipeline itself is safe to re-run on retry.
func (e *Engine) Resolve(
	ctx context.Context,
	threadID uuid.UUID,
	cause threads.Cause,
) (*threads.Thread, *learning.Analysis, error) {
	thread, err := e.domain.Threads.Transition(ctx, threadID, threads.StateResolved, cause)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := e.domain.Learning.Analyze(ctx, threadID)
	if err != nil {
		e.logger.Error("resolution analysis failed", "thread_id", threadID, "error", err)
		return thread, nil, nil
	}

	return thread, analysis, nil
}
