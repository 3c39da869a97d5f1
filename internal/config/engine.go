package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/stillpoint/parley/pkg/pagination"
)

const envSensitiveIntents = "PARLEY_ENGINE_SENSITIVE_INTENTS"

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "PARLEY_ENGINE_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "PARLEY_ENGINE_MAX_PAGE_SIZE",
}

// EngineConfig holds engine-level policy that does not belong to any one
// domain system.
type EngineConfig struct {
	// SensitiveIntents lists classified intents that require identity
	// verification before the agent may act on them.
	SensitiveIntents []string          `toml:"sensitive_intents"`
	Pagination       pagination.Config `toml:"pagination"`
}

// Sensitive reports whether an intent requires verification.
func (e *EngineConfig) Sensitive(intent string) bool {
	for _, s := range e.SensitiveIntents {
		if strings.EqualFold(s, intent) {
			return true
		}
	}
	return false
}

// Merge overwrites non-zero fields from overlay.
func (e *EngineConfig) Merge(overlay *EngineConfig) {
	if len(overlay.SensitiveIntents) > 0 {
		e.SensitiveIntents = overlay.SensitiveIntents
	}
	e.Pagination.Merge(&overlay.Pagination)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (e *EngineConfig) Finalize() error {
	if len(e.SensitiveIntents) == 0 {
		e.SensitiveIntents = []string{
			"order_status",
			"refund_request",
			"cancellation",
			"address_change",
		}
	}

	if v := os.Getenv(envSensitiveIntents); v != "" {
		parts := strings.Split(v, ",")
		intents := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				intents = append(intents, p)
			}
		}
		e.SensitiveIntents = intents
	}

	if err := e.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}
