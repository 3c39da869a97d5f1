// Package config loads the layered service configuration: a base config.toml,
// an optional per-environment overlay selected by PARLEY_ENV, and per-field
// environment variable overrides applied last.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/stillpoint/parley/internal/escalation"
	"github.com/stillpoint/parley/internal/knowledge"
	"github.com/stillpoint/parley/internal/learning"
	"github.com/stillpoint/parley/internal/verification"
	"github.com/stillpoint/parley/pkg/agent"
	"github.com/stillpoint/parley/pkg/archive"
	"github.com/stillpoint/parley/pkg/database"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvParleyEnv             = "PARLEY_ENV"
	EnvParleyShutdownTimeout = "PARLEY_SHUTDOWN_TIMEOUT"
	EnvParleyVersion         = "PARLEY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PARLEY_DB_HOST",
	Port:            "PARLEY_DB_PORT",
	Name:            "PARLEY_DB_NAME",
	User:            "PARLEY_DB_USER",
	Password:        "PARLEY_DB_PASSWORD",
	SSLMode:         "PARLEY_DB_SSL_MODE",
	MaxOpenConns:    "PARLEY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PARLEY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PARLEY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PARLEY_DB_CONN_TIMEOUT",
}

var archiveEnv = &archive.Env{
	ContainerName:    "PARLEY_ARCHIVE_CONTAINER_NAME",
	ConnectionString: "PARLEY_ARCHIVE_CONNECTION_STRING",
}

var agentEnv = &agent.Env{
	Token:          "PARLEY_AGENT_TOKEN",
	BaseURL:        "PARLEY_AGENT_BASE_URL",
	Model:          "PARLEY_AGENT_MODEL",
	EmbeddingModel: "PARLEY_AGENT_EMBEDDING_MODEL",
	MaxTokens:      "PARLEY_AGENT_MAX_TOKENS",
	Temperature:    "PARLEY_AGENT_TEMPERATURE",
	RequestTimeout: "PARLEY_AGENT_REQUEST_TIMEOUT",
}

var verificationEnv = &verification.Env{
	FlagKeywords:           "PARLEY_VERIFICATION_FLAG_KEYWORDS",
	StrictWhenUnconfigured: "PARLEY_VERIFICATION_STRICT_WHEN_UNCONFIGURED",
	LookupTimeout:          "PARLEY_VERIFICATION_LOOKUP_TIMEOUT",
}

var escalationEnv = &escalation.Env{
	SupervisorAddress:  "PARLEY_ESCALATION_SUPERVISOR_ADDRESS",
	DedupWindow:        "PARLEY_ESCALATION_DEDUP_WINDOW",
	LabelName:          "PARLEY_ESCALATION_LABEL_NAME",
	KnowledgeThreshold: "PARLEY_ESCALATION_KNOWLEDGE_THRESHOLD",
	InstructionSection: "PARLEY_ESCALATION_INSTRUCTION_SECTION",
}

var knowledgeEnv = &knowledge.Env{
	RetrievalFloor: "PARLEY_KNOWLEDGE_RETRIEVAL_FLOOR",
	HardDuplicate:  "PARLEY_KNOWLEDGE_HARD_DUPLICATE",
	TopK:           "PARLEY_KNOWLEDGE_TOP_K",
	CandidateLimit: "PARLEY_KNOWLEDGE_CANDIDATE_LIMIT",
	EmbedCharLimit: "PARLEY_KNOWLEDGE_EMBED_CHAR_LIMIT",
	ChunkSize:      "PARLEY_KNOWLEDGE_CHUNK_SIZE",
}

var learningEnv = &learning.Env{
	MinMessages:        "PARLEY_LEARNING_MIN_MESSAGES",
	MinDialogueQuality: "PARLEY_LEARNING_MIN_DIALOGUE_QUALITY",
	Concurrency:        "PARLEY_LEARNING_CONCURRENCY",
}

// Config is the root configuration for the Parley engine.
type Config struct {
	Database     database.Config     `toml:"database"`
	Archive      archive.Config      `toml:"archive"`
	Agent        agent.Config        `toml:"agent"`
	Verification verification.Config `toml:"verification"`
	Escalation   escalation.Config   `toml:"escalation"`
	Knowledge    knowledge.Config    `toml:"knowledge"`
	Learning     learning.Config     `toml:"learning"`
	Engine       EngineConfig        `toml:"engine"`

	ShutdownTimeout string `toml:"shutdown_timeout"`
	Version         string `toml:"version"`
}

// Env returns the PARLEY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvParleyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Database.Merge(&overlay.Database)
	c.Archive.Merge(&overlay.Archive)
	c.Agent.Merge(&overlay.Agent)
	c.Verification.Merge(&overlay.Verification)
	c.Escalation.Merge(&overlay.Escalation)
	c.Knowledge.Merge(&overlay.Knowledge)
	c.Learning.Merge(&overlay.Learning)
	c.Engine.Merge(&overlay.Engine)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Archive.Finalize(archiveEnv); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := c.Agent.Finalize(agentEnv); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Verification.Finalize(verificationEnv); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	if err := c.Escalation.Finalize(escalationEnv); err != nil {
		return fmt.Errorf("escalation: %w", err)
	}
	if err := c.Knowledge.Finalize(knowledgeEnv); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}
	if err := c.Learning.Finalize(learningEnv); err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvParleyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvParleyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvParleyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
