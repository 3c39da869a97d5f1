package escalation

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds escalation policy.
type Config struct {
	// SupervisorAddress receives escalation notices; replies from this
	// address drive the response router.
	SupervisorAddress string `toml:"supervisor_address"`
	// DedupWindow suppresses repeat notices for the same thread.
	DedupWindow string `toml:"dedup_window"`
	// LabelName is the provider-side label applied to escalated threads.
	LabelName string `toml:"label_name"`
	// KnowledgeThreshold is the minimum content length, in characters,
	// before supervisor content is offered for knowledge extraction.
	KnowledgeThreshold int `toml:"knowledge_threshold"`
	// InstructionSection names the instruction document that accumulates
	// supervisor guidance.
	InstructionSection string `toml:"instruction_section"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	SupervisorAddress  string
	DedupWindow        string
	LabelName          string
	KnowledgeThreshold string
	InstructionSection string
}

// DedupWindowDuration returns DedupWindow as a time.Duration.
func (c *Config) DedupWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.DedupWindow)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.SupervisorAddress != "" {
		c.SupervisorAddress = overlay.SupervisorAddress
	}
	if overlay.DedupWindow != "" {
		c.DedupWindow = overlay.DedupWindow
	}
	if overlay.LabelName != "" {
		c.LabelName = overlay.LabelName
	}
	if overlay.KnowledgeThreshold != 0 {
		c.KnowledgeThreshold = overlay.KnowledgeThreshold
	}
	if overlay.InstructionSection != "" {
		c.InstructionSection = overlay.InstructionSection
	}
}

func (c *Config) loadDefaults() {
	if c.DedupWindow == "" {
		c.DedupWindow = "24h"
	}
	if c.LabelName == "" {
		c.LabelName = "escalated"
	}
	if c.KnowledgeThreshold == 0 {
		c.KnowledgeThreshold = 200
	}
	if c.InstructionSection == "" {
		c.InstructionSection = "escalation learnings"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.SupervisorAddress != "" {
		if v := os.Getenv(env.SupervisorAddress); v != "" {
			c.SupervisorAddress = v
		}
	}
	if env.DedupWindow != "" {
		if v := os.Getenv(env.DedupWindow); v != "" {
			c.DedupWindow = v
		}
	}
	if env.LabelName != "" {
		if v := os.Getenv(env.LabelName); v != "" {
			c.LabelName = v
		}
	}
	if env.KnowledgeThreshold != "" {
		if v := os.Getenv(env.KnowledgeThreshold); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.KnowledgeThreshold = n
			}
		}
	}
	if env.InstructionSection != "" {
		if v := os.Getenv(env.InstructionSection); v != "" {
			c.InstructionSection = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.DedupWindow); err != nil {
		return fmt.Errorf("invalid dedup_window: %w", err)
	}
	if c.KnowledgeThreshold < 0 {
		return fmt.Errorf("knowledge_threshold must not be negative")
	}
	return nil
}
