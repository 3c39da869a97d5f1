package learning

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Thresholds gate auto-approval for one proposal type. All three conditions
// must hold.
type Thresholds struct {
	MinConfidence float64 `toml:"min_confidence"`
	MinQuality    float64 `toml:"min_quality"`
	MaxSimilarity float64 `toml:"max_similarity"`
}

// Config holds learning pipeline policy.
type Config struct {
	// MinMessages is the minimum conversation length worth analyzing.
	MinMessages int `toml:"min_messages"`
	// MinDialogueQuality gates extraction output; below it the pipeline
	// records a summary and stops.
	MinDialogueQuality float64 `toml:"min_dialogue_quality"`
	// Concurrency bounds parallel duplicate checks across a proposal batch.
	Concurrency int `toml:"concurrency"`

	KBArticle         Thresholds `toml:"kb_article"`
	InstructionUpdate Thresholds `toml:"instruction_update"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MinMessages        string
	MinDialogueQuality string
	Concurrency        string
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
	if overlay.MinMessages != 0 {
		c.MinMessages = overlay.MinMessages
	}
	if overlay.MinDialogueQuality != 0 {
		c.MinDialogueQuality = overlay.MinDialogueQuality
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	c.KBArticle.merge(&overlay.KBArticle)
	c.InstructionUpdate.merge(&overlay.InstructionUpdate)
}

func (t *Thresholds) merge(overlay *Thresholds) {
	if overlay.MinConfidence != 0 {
		t.MinConfidence = overlay.MinConfidence
	}
	if overlay.MinQuality != 0 {
		t.MinQuality = overlay.MinQuality
	}
	if overlay.MaxSimilarity != 0 {
		t.MaxSimilarity = overlay.MaxSimilarity
	}
}

func (c *Config) loadDefaults() {
	if c.MinMessages == 0 {
		c.MinMessages = 3
	}
	if c.MinDialogueQuality == 0 {
		c.MinDialogueQuality = 0.5
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.KBArticle == (Thresholds{}) {
		c.KBArticle = Thresholds{
			MinConfidence: 0.85,
			MinQuality:    0.70,
			MaxSimilarity: 0.85,
		}
	}
	if c.InstructionUpdate == (Thresholds{}) {
		c.InstructionUpdate = Thresholds{
			MinConfidence: 0.80,
			MinQuality:    0.60,
			MaxSimilarity: 0.85,
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MinMessages != "" {
		if v := os.Getenv(env.MinMessages); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MinMessages = n
			}
		}
	}
	if env.MinDialogueQuality != "" {
		if v := os.Getenv(env.MinDialogueQuality); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.MinDialogueQuality = f
			}
		}
	}
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Concurrency = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.MinMessages < 1 {
		return fmt.Errorf("min_messages must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}

	var problems []string
	for name, t := range map[string]Thresholds{
		"kb_article":         c.KBArticle,
		"instruction_update": c.InstructionUpdate,
	} {
		if t.MinConfidence < 0 || t.MinConfidence > 1 ||
			t.MinQuality < 0 || t.MinQuality > 1 ||
			t.MaxSimilarity < 0 || t.MaxSimilarity > 1 {
			problems = append(problems, name)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("thresholds out of [0,1] range: %s", strings.Join(problems, ", "))
	}
	return nil
}

// thresholdsFor returns the auto-approval thresholds for a proposal type.
func (c *Config) thresholdsFor(t ProposalType) (Thresholds, bool) {
	switch t {
	case TypeKBArticle:
		return c.KBArticle, true
	case TypeInstructionUpdate:
		return c.InstructionUpdate, true
	}
	return Thresholds{}, false
}
