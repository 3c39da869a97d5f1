package knowledge

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds duplicate-detection and chunking policy.
type Config struct {
	RetrievalFloor float64 `toml:"retrieval_floor"`
	HardDuplicate  float64 `toml:"hard_duplicate"`
	TopK           int     `toml:"top_k"`
	CandidateLimit int     `toml:"candidate_limit"`
	EmbedCharLimit int     `toml:"embed_char_limit"`
	ChunkSize      int     `toml:"chunk_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	RetrievalFloor string
	HardDuplicate  string
	TopK           string
	CandidateLimit string
	EmbedCharLimit string
	ChunkSize      string
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
	if overlay.RetrievalFloor != 0 {
		c.RetrievalFloor = overlay.RetrievalFloor
	}
	if overlay.HardDuplicate != 0 {
		c.HardDuplicate = overlay.HardDuplicate
	}
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
	if overlay.CandidateLimit != 0 {
		c.CandidateLimit = overlay.CandidateLimit
	}
	if overlay.EmbedCharLimit != 0 {
		c.EmbedCharLimit = overlay.EmbedCharLimit
	}
	if overlay.ChunkSize != 0 {
		c.ChunkSize = overlay.ChunkSize
	}
}

func (c *Config) loadDefaults() {
	if c.RetrievalFloor == 0 {
		c.RetrievalFloor = 0.70
	}
	if c.HardDuplicate == 0 {
		c.HardDuplicate = 0.85
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.CandidateLimit == 0 {
		c.CandidateLimit = 500
	}
	if c.EmbedCharLimit == 0 {
		c.EmbedCharLimit = 2000
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1200
	}
}

func (c *Config) loadEnv(env *Env) {
	loadFloat := func(name string, dst *float64) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	loadInt := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	loadFloat(env.RetrievalFloor, &c.RetrievalFloor)
	loadFloat(env.HardDuplicate, &c.HardDuplicate)
	loadInt(env.TopK, &c.TopK)
	loadInt(env.CandidateLimit, &c.CandidateLimit)
	loadInt(env.EmbedCharLimit, &c.EmbedCharLimit)
	loadInt(env.ChunkSize, &c.ChunkSize)
}

func (c *Config) validate() error {
	if c.RetrievalFloor < 0 || c.RetrievalFloor > 1 {
		return fmt.Errorf("retrieval_floor must be in [0,1]")
	}
	if c.HardDuplicate < 0 || c.HardDuplicate > 1 {
		return fmt.Errorf("hard_duplicate must be in [0,1]")
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive")
	}
	return nil
}
