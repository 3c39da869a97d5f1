// Package engine composes the domain systems and exposes the event entry
// points that drive the thread lifecycle: inbound mail, classification
// results, supervisor replies, and resolution.
package engine

import (
	"github.com/stillpoint/parley/internal/config"
	"github.com/stillpoint/parley/internal/infrastructure"
)

// Runtime extends Infrastructure with engine-level configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Config *config.Config
}

// NewRuntime creates an engine runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "engine"),
			Database:  infra.Database,
			Archive:   infra.Archive,
			Agent:     infra.Agent,
		},
		Config: cfg,
	}
}
