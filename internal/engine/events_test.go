package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/config"
	"github.com/stillpoint/parley/internal/engine"
	"github.com/stillpoint/parley/internal/escalation"
	"github.com/stillpoint/parley/internal/infrastructure"
	"github.com/stillpoint/parley/internal/learning"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/internal/verification"
)

type fakeThreadStore struct {
	threads.System

	byRef       map[string]*threads.Thread
	thread      *threads.Thread
	created     []threads.CreateCommand
	appended    []threads.AppendMessageCommand
	intents     []string
	transitions []threads.State
	revives     int
	reviveErr   error
}

func (f *fakeThreadStore) FindByProviderRef(ctx context.Context, ref string) (*threads.Thread, error) {
	if t, ok := f.byRef[ref]; ok {
		return t, nil
	}
	return nil, threads.ErrNotFound
}

func (f *fakeThreadStore) Find(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	return f.thread, nil
}

func (f *fakeThreadStore) Create(ctx context.Context, cmd threads.CreateCommand) (*threads.Thread, error) {
	f.created = append(f.created, cmd)
	f.thread = &threads.Thread{
		ID:            uuid.New(),
		ProviderRef:   cmd.ProviderRef,
		Subject:       cmd.Subject,
		CustomerEmail: cmd.CustomerEmail,
		State:         threads.StateNew,
	}
	return f.thread, nil
}

func (f *fakeThreadStore) Revive(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	f.revives++
	if f.reviveErr != nil {
		return nil, f.reviveErr
	}
	f.thread.State = threads.StateNew
	return f.thread, nil
}

func (f *fakeThreadStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	to threads.State,
	cause threads.Cause,
) (*threads.Thread, error) {
	if !threads.CanTransition(f.thread.State, to) {
		return nil, threads.ErrInvalidTransition
	}
	f.transitions = append(f.transitions, to)
	f.thread.State = to
	return f.thread, nil
}

func (f *fakeThreadStore) SetIntent(ctx context.Context, id uuid.UUID, intent string) error {
	f.intents = append(f.intents, intent)
	return nil
}

func (f *fakeThreadStore) AppendMessage(
	ctx context.Context,
	id uuid.UUID,
	cmd threads.AppendMessageCommand,
) (*threads.Message, error) {
	f.appended = append(f.appended, cmd)
	return &threads.Message{ID: uuid.New(), ThreadID: id, Direction: cmd.Direction}, nil
}

type fakeGate struct {
	verification.System

	record *verification.Record
	calls  int
}

func (f *fakeGate) Verify(ctx context.Context, req verification.Request) (*verification.Record, error) {
	f.calls++
	return f.record, nil
}

type fakeEscalationSystem struct {
	escalation.System

	escalated   []string
	flags       [][]string
	escalateErr error
	reply       *escalation.DispatchResult
	replyErr    error
}

func (f *fakeEscalationSystem) Escalate(
	ctx context.Context,
	threadID uuid.UUID,
	reason string,
	flags []string,
) (*escalation.Email, error) {
	if f.escalateErr != nil {
		return nil, f.escalateErr
	}
	f.escalated = append(f.escalated, reason)
	f.flags = append(f.flags, flags)
	return &escalation.Email{ID: uuid.New(), ThreadID: threadID}, nil
}

func (f *fakeEscalationSystem) ProcessReply(
	ctx context.Context,
	threadID uuid.UUID,
	body string,
) (*escalation.DispatchResult, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return f.reply, nil
}

type fakeAnalyzer struct {
	learning.System

	analyzed   []uuid.UUID
	analyzeErr error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, threadID uuid.UUID) (*learning.Analysis, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	f.analyzed = append(f.analyzed, threadID)
	return &learning.Analysis{ThreadID: threadID}, nil
}

type engineFixture struct {
	threads    *fakeThreadStore
	gate       *fakeGate
	escalation *fakeEscalationSystem
	analyzer   *fakeAnalyzer
	engine     *engine.Engine
}

func newEngine(t *testing.T, state threads.State) *engineFixture {
	t.Helper()

	f := &engineFixture{
		threads: &fakeThreadStore{
			byRef: map[string]*threads.Thread{},
			thread: &threads.Thread{
				ID:      uuid.New(),
				Subject: "Where is my refund?",
				State:   state,
			},
		},
		gate:       &fakeGate{record: &verification.Record{Status: verification.StatusVerified}},
		escalation: &fakeEscalationSystem{},
		analyzer:   &fakeAnalyzer{},
	}

	runtime := engine.NewRuntime(
		&config.Config{Engine: config.EngineConfig{
			SensitiveIntents: []string{"refund_request", "cancellation"},
		}},
		&infrastructure.Infrastructure{Logger: slog.Default()},
	)

	f.engine = engine.New(runtime, &engine.Domain{
		Threads:      f.threads,
		Verification: f.gate,
		Learning:     f.analyzer,
		Escalation:   f.escalation,
	})
	return f
}

func TestHandleInbound(t *testing.T) {
	t.Run("creates thread for unknown reference", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)

		thread, err := f.engine.HandleInbound(context.Background(), engine.InboundCommand{
			ProviderRef: "msg-001",
			Subject:     "Order question",
			Sender:      "kim@example.com",
			Body:        "Where is my order?",
		})
		if err != nil {
			t.Fatalf("HandleInbound error: %v", err)
		}

		if len(f.threads.created) != 1 {
			t.Fatalf("created %d threads, want 1", len(f.threads.created))
		}
		if thread.State != threads.StateNew {
			t.Errorf("state = %s, want new", thread.State)
		}
		if len(f.threads.appended) != 1 || f.threads.appended[0].Direction != threads.DirectionInbound {
			t.Errorf("appended = %+v, want one inbound message", f.threads.appended)
		}
	})

	t.Run("revives resolved thread", func(t *testing.T) {
		f := newEngine(t, threads.StateResolved)
		f.threads.byRef["msg-002"] = f.threads.thread

		thread, err := f.engine.HandleInbound(context.Background(), engine.InboundCommand{
			ProviderRef: "msg-002",
			Sender:      "kim@example.com",
			Body:        "It broke again.",
		})
		if err != nil {
			t.Fatalf("HandleInbound error: %v", err)
		}

		if f.threads.revives != 1 {
			t.Errorf("revives = %d, want 1", f.threads.revives)
		}
		if thread.State != threads.StateNew {
			t.Errorf("state = %s, want new", thread.State)
		}
		if len(f.threads.created) != 0 {
			t.Errorf("created a new thread for an existing reference")
		}
	})

	t.Run("lost revival race falls back to current thread", func(t *testing.T) {
		f := newEngine(t, threads.StateResolved)
		f.threads.byRef["msg-003"] = f.threads.thread
		f.threads.reviveErr = threads.ErrStateConflict
		f.threads.thread.State = threads.StateInProgress

		_, err := f.engine.HandleInbound(context.Background(), engine.InboundCommand{
			ProviderRef: "msg-003",
			Sender:      "kim@example.com",
			Body:        "Hello again.",
		})
		if err != nil {
			t.Fatalf("HandleInbound error after lost race: %v", err)
		}
		if len(f.threads.appended) != 1 {
			t.Errorf("appended = %d messages, want 1", len(f.threads.appended))
		}
	})
}

func TestHandleClassification(t *testing.T) {
	t.Run("benign intent proceeds without verification", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "general_question"}, "How do sizes run?",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if f.gate.calls != 0 {
			t.Errorf("gate called %d times for benign intent", f.gate.calls)
		}
		if outcome.Thread.State != threads.StateInProgress {
			t.Errorf("state = %s, want in_progress", outcome.Thread.State)
		}
	})

	t.Run("classifier requesting human escalates", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "complaint", RequiresHuman: true}, "I want a manager.",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if outcome.Thread.State != threads.StateEscalated {
			t.Errorf("state = %s, want escalated", outcome.Thread.State)
		}
		if len(f.escalation.escalated) != 1 {
			t.Errorf("escalations = %v, want 1 notice", f.escalation.escalated)
		}
	})

	t.Run("sensitive verified proceeds", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "refund_request"}, "Refund order #12345 please.",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if f.gate.calls != 1 {
			t.Errorf("gate called %d times, want 1", f.gate.calls)
		}
		if outcome.Thread.State != threads.StateInProgress {
			t.Errorf("state = %s, want in_progress", outcome.Thread.State)
		}
	})

	t.Run("sensitive pending awaits more information", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)
		f.gate.record = &verification.Record{Status: verification.StatusPending}

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "refund_request"}, "I want a refund.",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if outcome.Thread.State != threads.StateAwaitingInfo {
			t.Errorf("state = %s, want awaiting_info", outcome.Thread.State)
		}
	})

	t.Run("flagged account escalates with flags", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)
		f.gate.record = &verification.Record{
			Status: verification.StatusFlagged,
			Flags:  []string{"order_tag:fraud"},
		}

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "refund_request"}, "Refund order #12345.",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if outcome.Thread.State != threads.StateEscalated {
			t.Errorf("state = %s, want escalated", outcome.Thread.State)
		}
		if len(f.escalation.flags) != 1 || f.escalation.flags[0][0] != "order_tag:fraud" {
			t.Errorf("flags = %v, want order flags forwarded", f.escalation.flags)
		}
	})

	t.Run("suppressed notice is not an error", func(t *testing.T) {
		f := newEngine(t, threads.StateNew)
		f.escalation.escalateErr = escalation.ErrRecentlyNotified

		outcome, err := f.engine.HandleClassification(
			context.Background(), f.threads.thread.ID,
			engine.Classification{Intent: "complaint", RequiresHuman: true}, "Still waiting.",
		)
		if err != nil {
			t.Fatalf("HandleClassification error: %v", err)
		}

		if outcome.Thread.State != threads.StateEscalated {
			t.Errorf("state = %s, want escalated despite suppressed notice", outcome.Thread.State)
		}
		if outcome.Escalation != nil {
			t.Errorf("Escalation = %+v, want nil for suppressed notice", outcome.Escalation)
		}
	})
}

func TestHandleSupervisorReply(t *testing.T) {
	t.Run("resolving reply runs the learning pipeline", func(t *testing.T) {
		f := newEngine(t, threads.StateResolved)
		f.escalation.reply = &escalation.DispatchResult{
			ThreadID: f.threads.thread.ID,
			Type:     escalation.TypeResolve,
			Content:  "Refund issued.",
			Outcomes: []escalation.Outcome{{Step: escalation.StepResolveThread}},
		}

		if _, err := f.engine.HandleSupervisorReply(
			context.Background(), f.threads.thread.ID, "[RESOLVE] Refund issued.",
		); err != nil {
			t.Fatalf("HandleSupervisorReply error: %v", err)
		}

		if len(f.analyzer.analyzed) != 1 {
			t.Fatalf("analyzed %d threads, want 1", len(f.analyzer.analyzed))
		}
		if f.analyzer.analyzed[0] != f.threads.thread.ID {
			t.Errorf("analyzed wrong thread: %s", f.analyzer.analyzed[0])
		}
	})

	t.Run("failed resolve transition skips the pipeline", func(t *testing.T) {
		f := newEngine(t, threads.StateEscalated)
		f.escalation.reply = &escalation.DispatchResult{
			ThreadID: f.threads.thread.ID,
			Type:     escalation.TypeResolve,
			Outcomes: []escalation.Outcome{{
				Step:  escalation.StepResolveThread,
				Error: "state conflict",
			}},
		}

		if _, err := f.engine.HandleSupervisorReply(
			context.Background(), f.threads.thread.ID, "[RESOLVE] done",
		); err != nil {
			t.Fatalf("HandleSupervisorReply error: %v", err)
		}

		if len(f.analyzer.analyzed) != 0 {
			t.Errorf("analyzed %d threads after failed resolve, want 0", len(f.analyzer.analyzed))
		}
	})

	t.Run("relay does not run the pipeline", func(t *testing.T) {
		f := newEngine(t, threads.StateEscalated)
		f.escalation.reply = &escalation.DispatchResult{
			ThreadID: f.threads.thread.ID,
			Type:     escalation.TypeRelay,
			Content:  "Ships Monday.",
			Outcomes: []escalation.Outcome{{Step: escalation.StepSaveReplyDraft}},
		}

		if _, err := f.engine.HandleSupervisorReply(
			context.Background(), f.threads.thread.ID, "Ships Monday.",
		); err != nil {
			t.Fatalf("HandleSupervisorReply error: %v", err)
		}

		if len(f.analyzer.analyzed) != 0 {
			t.Errorf("analyzed %d threads for a relay reply, want 0", len(f.analyzer.analyzed))
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("transitions and analyzes once", func(t *testing.T) {
		f := newEngine(t, threads.StateEscalated)

		thread, analysis, err := f.engine.Resolve(
			context.Background(), f.threads.thread.ID, threads.CauseAgent,
		)
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}

		if thread.State != threads.StateResolved {
			t.Errorf("state = %s, want resolved", thread.State)
		}
		if analysis == nil || len(f.analyzer.analyzed) != 1 {
			t.Errorf("analysis = %v, analyzed = %d, want exactly one run", analysis, len(f.analyzer.analyzed))
		}

		if _, _, err := f.engine.Resolve(
			context.Background(), f.threads.thread.ID, threads.CauseAgent,
		); !errors.Is(err, threads.ErrInvalidTransition) {
			t.Errorf("second Resolve error = %v, want ErrInvalidTransition", err)
		}
		if len(f.analyzer.analyzed) != 1 {
			t.Errorf("analyzed %d times after repeated resolve, want 1", len(f.analyzer.analyzed))
		}
	})

	t.Run("analysis failure does not fail resolution", func(t *testing.T) {
		f := newEngine(t, threads.StateEscalated)
		f.analyzer.analyzeErr = errors.New("model unavailable")

		thread, analysis, err := f.engine.Resolve(
			context.Background(), f.threads.thread.ID, threads.CauseAgent,
		)
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
		if thread.State != threads.StateResolved {
			t.Errorf("state = %s, want resolved", thread.State)
		}
		if analysis != nil {
			t.Errorf("analysis = %+v, want nil on pipeline failure", analysis)
		}
	})
}
