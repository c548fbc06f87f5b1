package llm

import (
	"fmt"

	"atelier/internal/config"
)

// NewClient creates an LLM client from configuration, wrapped with the
// process-wide admission limiter. Returns nil (no error) when no API key is
// configured: callers treat a nil client as heuristic-only mode.
func NewClient(cfg config.LLMConfig) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	var inner LLMClient
	switch cfg.Provider {
	case "openai", "":
		c := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			c.MaxTokens = cfg.MaxTokens
		}
		c.Temperature = cfg.Temperature
		c.Timeout = cfg.TimeoutDuration()
		inner = NewOpenAIClientWithConfig(c)
	case "anthropic":
		c := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			c.MaxTokens = cfg.MaxTokens
		}
		c.Temperature = cfg.Temperature
		c.Timeout = cfg.TimeoutDuration()
		inner = NewAnthropicClientWithConfig(c)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'openai' or 'anthropic')", cfg.Provider)
	}

	return NewLimitedClient(inner, cfg.MaxInFlight), nil
}
