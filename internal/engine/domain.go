package engine

import (
	"context"

	"github.com/stillpoint/parley/internal/drafts"
	"github.com/stillpoint/parley/internal/escalation"
	"github.com/stillpoint/parley/internal/knowledge"
	"github.com/stillpoint/parley/internal/learning"
	"github.com/stillpoint/parley/internal/orders"
	"github.com/stillpoint/parley/internal/threads"
	"github.com/stillpoint/parley/internal/verification"
	"github.com/stillpoint/parley/pkg/mailer"
)

// Domain holds all domain systems that comprise the engine.
type Domain struct {
	Threads      threads.System
	Verification verification.System
	Drafts       drafts.System
	Knowledge    knowledge.System
	Learning     learning.System
	Escalation   escalation.System
}

// NewDomain creates all domain systems from the engine runtime. The order
// lookup and mailer are external collaborators; pass orders.Unconfigured()
// and mailer.Disabled() where no integration exists.
func NewDomain(runtime *Runtime, lookup orders.Lookup, mail mailer.System) *Domain {
	db := runtime.Database.Connection()
	cfg := runtime.Config

	threadSys := threads.New(db, runtime.Logger, cfg.Engine.Pagination)

	gate := verification.NewGate(
		verification.NewStore(db, runtime.Logger),
		lookup,
		threadSys,
		cfg.Verification,
		runtime.Logger,
	)

	draftSys := drafts.New(db, runtime.Logger)

	knowledgeSys := knowledge.New(
		knowledge.NewStore(db, runtime.Logger),
		runtime.Agent,
		cfg.Knowledge,
		runtime.Logger,
	)

	learningSys := learning.NewPipeline(
		learning.NewStore(db, runtime.Logger),
		threadSys,
		knowledgeSys,
		runtime.Agent,
		runtime.Archive,
		&cfg.Learning,
		runtime.Logger,
	)

	escalationSys := escalation.NewRouter(
		escalation.NewStore(db, runtime.Logger),
		threadSys,
		draftSys,
		mail,
		runtime.Agent,
		learningSys,
		instructionAppender{knowledgeSys},
		&cfg.Escalation,
		runtime.Logger,
	)

	return &Domain{
		Threads:      threadSys,
		Verification: gate,
		Drafts:       draftSys,
		Knowledge:    knowledgeSys,
		Learning:     learningSys,
		Escalation:   escalationSys,
	}
}

// instructionAppender narrows the knowledge system to the signature the
// escalation router needs.
type instructionAppender struct {
	knowledge knowledge.System
}

func (a instructionAppender) AppendInstruction(ctx context.Context, section, content string) error {
	_, err := a.knowledge.AppendInstruction(ctx, section, content)
	return err
}
