package anthropic

import (
	"fmt"
	"os"
)

// Config holds Anthropic connection settings, following the same
// NewConfigFromEnv/Validate shape as the teacher's llm/openai/config.go.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// NewConfigFromEnv builds Config from ANTHROPIC_API_KEY, ANTHROPIC_MODEL
// (default "claude-3-5-sonnet-latest"), ANTHROPIC_MAX_TOKENS (default 4096).
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		Model:     getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		MaxTokens: 4096,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
