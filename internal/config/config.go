// Package config holds all atelier configuration: LLM providers, embedding
// backends, the knowledge collection, phase thresholds, linkography constants,
// cognitive baselines, and orchestrator limits. Configuration is loaded from a
// YAML file with environment-variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all atelier configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Knowledge collection configuration
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Phase manager thresholds
	Phase PhaseConfig `yaml:"phase"`

	// Linkography engine constants
	Linkography LinkographyConfig `yaml:"linkography"`

	// Orchestrator limits
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the chat completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// MaxInFlight caps concurrent LLM calls process-wide.
	MaxInFlight int `yaml:"max_in_flight"`
}

// TimeoutDuration parses the configured timeout, falling back to 15s.
func (c LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "", "ollama" or "genai"

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// KnowledgeConfig configures the vector knowledge collection.
type KnowledgeConfig struct {
	DatabasePath  string  `yaml:"database_path"`
	DocumentsDir  string  `yaml:"documents_dir"`
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	WatchEnabled  bool    `yaml:"watch_enabled"`
}

// PhaseConfig holds the calibratable phase-advancement constants.
type PhaseConfig struct {
	// Minimum user-message counts before a phase may advance.
	VisualizationMinMessages   int `yaml:"visualization_min_messages"`
	MaterializationMinMessages int `yaml:"materialization_min_messages"`

	// Minimum distinct phase keywords required as evidence.
	MinPhaseKeywords int `yaml:"min_phase_keywords"`

	// Question budget: user messages required in the current phase before
	// transition readiness is reported.
	QuestionBudget int `yaml:"question_budget"`
}

// LinkographyConfig holds the link generation constants.
type LinkographyConfig struct {
	// Window is the maximum sequence distance between linked moves.
	Window int `yaml:"window"`

	// Threshold is the minimum similarity for a link to be emitted.
	Threshold float64 `yaml:"threshold"`
}

// OrchestratorConfig configures per-turn execution.
type OrchestratorConfig struct {
	TurnDeadline  string `yaml:"turn_deadline"`
	CallTimeout   string `yaml:"call_timeout"`
	WordBudget    int    `yaml:"word_budget"`
	CacheCapacity int    `yaml:"cache_capacity"`
}

// TurnDeadlineDuration parses the turn deadline, falling back to 30s.
func (c OrchestratorConfig) TurnDeadlineDuration() time.Duration {
	d, err := time.ParseDuration(c.TurnDeadline)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// CallTimeoutDuration parses the per-call timeout, falling back to 15s.
func (c OrchestratorConfig) CallTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "atelier",
		Version: "0.4.0",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "15s",
			MaxTokens:   1024,
			Temperature: 0.4,
			MaxInFlight: 8,
		},

		Embedding: EmbeddingConfig{
			Provider:       "", // heuristic similarity unless configured
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},

		Knowledge: KnowledgeConfig{
			DatabasePath:  "data/atelier.db",
			DocumentsDir:  "",
			TopK:          5,
			MinSimilarity: 0.3,
			WatchEnabled:  false,
		},

		Phase: PhaseConfig{
			VisualizationMinMessages:   8,
			MaterializationMinMessages: 16,
			MinPhaseKeywords:           2,
			QuestionBudget:             8,
		},

		Linkography: LinkographyConfig{
			Window:    8,
			Threshold: 0.1,
		},

		Orchestrator: OrchestratorConfig{
			TurnDeadline:  "30s",
			CallTimeout:   "15s",
			WordBudget:    220,
			CacheCapacity: 256,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// API keys are never stored in config files by default; the environment is the
// expected source.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if path := os.Getenv("KNOWLEDGE_BASE_PATH"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if dir := os.Getenv("KNOWLEDGE_DOCUMENTS_DIR"); dir != "" {
		c.Knowledge.DocumentsDir = dir
	}
	if os.Getenv("ATELIER_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// HasLLM reports whether an LLM provider is usable. Absence triggers the
// heuristic-only fallback paths throughout the system.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != ""
}
