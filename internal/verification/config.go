package verification

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds verification gate policy.
//
// StrictWhenUnconfigured controls the escape hatch for environments without a
// commerce integration: when false (the default) a thread auto-verifies with
// no checks; when true the gate fails closed to pending. Flagged for product
// review since the default weakens the fail-closed guarantee.
type Config struct {
	FlagKeywords           []string `toml:"flag_keywords"`
	StrictWhenUnconfigured bool     `toml:"strict_when_unconfigured"`
	LookupTimeout          string   `toml:"lookup_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	FlagKeywords           string
	StrictWhenUnconfigured string
	LookupTimeout          string
}

// LookupTimeoutDuration returns LookupTimeout as a time.Duration.
func (c *Config) LookupTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LookupTimeout)
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
	if len(overlay.FlagKeywords) > 0 {
		c.FlagKeywords = overlay.FlagKeywords
	}
	if overlay.StrictWhenUnconfigured {
		c.StrictWhenUnconfigured = true
	}
	if overlay.LookupTimeout != "" {
		c.LookupTimeout = overlay.LookupTimeout
	}
}

func (c *Config) loadDefaults() {
	if len(c.FlagKeywords) == 0 {
		c.FlagKeywords = DefaultFlagKeywords
	}
	if c.LookupTimeout == "" {
		c.LookupTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.FlagKeywords != "" {
		if v := os.Getenv(env.FlagKeywords); v != "" {
			parts := strings.Split(v, ",")
			keywords := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					keywords = append(keywords, strings.ToLower(p))
				}
			}
			if len(keywords) > 0 {
				c.FlagKeywords = keywords
			}
		}
	}
	if env.StrictWhenUnconfigured != "" {
		if v := os.Getenv(env.StrictWhenUnconfigured); v == "true" || v == "1" {
			c.StrictWhenUnconfigured = true
		}
	}
	if env.LookupTimeout != "" {
		if v := os.Getenv(env.LookupTimeout); v != "" {
			c.LookupTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.LookupTimeout); err != nil {
		return fmt.Errorf("invalid lookup_timeout: %w", err)
	}
	return nil
}
