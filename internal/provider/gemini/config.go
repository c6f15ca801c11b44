package gemini

import (
	"fmt"
	"os"
)

// Config holds Gemini connection settings, following the teacher's
// NewConfigFromEnv/Validate convention.
type Config struct {
	APIKey string
	Model  string
}

// NewConfigFromEnv builds Config from GEMINI_API_KEY, GEMINI_MODEL
// (default "gemini-1.5-pro").
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
