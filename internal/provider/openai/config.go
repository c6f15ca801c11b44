package openai

import (
	"fmt"
	"os"
)

// Config holds OpenAI connection settings, generalized from the
// teacher's llm/openai/config.go (thinking-mode/tool-call-mode detection
// dropped — tool-choice forcing here is explicit per Call, not inferred
// from the model name).
type Config struct {
	APIKey  string
	BaseURL string // empty uses the SDK default (https://api.openai.com/v1)
	Model   string
}

// NewConfigFromEnv builds Config from OPENAI_API_KEY, OPENAI_BASE_URL,
// OPENAI_MODEL (default "gpt-4o").
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
