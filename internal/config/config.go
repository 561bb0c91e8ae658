// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	LogLevel     string

	SourceBaseURL string
	SourceAPIKey  string
	Platform      string

	KnowledgeBaseURL string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	FetchLimit  int
	TickSeconds int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	sourceURL := os.Getenv("SOURCE_BASE_URL")
	if sourceURL == "" {
		return nil, fmt.Errorf("SOURCE_BASE_URL is required")
	}
	llmKey := os.Getenv("LLM_API_KEY")
	if llmKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	cfg := &Config{
		DatabasePath:     envOr("DATABASE_PATH", "./data/replyscout.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		SourceBaseURL:    sourceURL,
		SourceAPIKey:     os.Getenv("SOURCE_API_KEY"),
		Platform:         envOr("PLATFORM", "x"),
		KnowledgeBaseURL: os.Getenv("KNOWLEDGE_BASE_URL"),
		LLMBaseURL:       os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:        llmKey,
		LLMModel:         envOr("LLM_MODEL", "gpt-4o-mini"),
	}

	var err error
	if cfg.FetchLimit, err = envIntOr("FETCH_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.TickSeconds, err = envIntOr("TICK_SECONDS", 60); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}
