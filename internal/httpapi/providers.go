package httpapi

import (
	"context"
	"fmt"

	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/provider/anthropic"
	"github.com/seqthink/engine/internal/provider/gemini"
	"github.com/seqthink/engine/internal/provider/openai"
)

// ProviderKeys holds the credentials loaded once at startup
// (internal/config.EngineConfig), used to build a fresh per-request
// adapter with the request's requested model.
type ProviderKeys struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
}

// BuildAdapter constructs a provider.Adapter for the named provider,
// using model when non-empty and otherwise a fixed default model name
// per provider (the *_MODEL environment variables are not read here).
// A fresh adapter per request (rather than one shared
// instance per provider) keeps per-request model selection simple; the
// underlying SDK clients are cheap to construct and hold no persistent
// connection of their own.
func (k ProviderKeys) BuildAdapter(ctx context.Context, name, model string) (provider.Adapter, error) {
	switch name {
	case "openai":
		cfg := &openai.Config{APIKey: k.OpenAIAPIKey, Model: model}
		if cfg.Model == "" {
			cfg.Model = "gpt-4o"
		}
		if err := cfg.Validate(); err != nil {
			return nil, engerr.Wrap(engerr.KindInternal, "openai config", err)
		}
		return openai.New(cfg), nil
	case "anthropic":
		cfg := &anthropic.Config{APIKey: k.AnthropicAPIKey, Model: model, MaxTokens: 4096}
		if cfg.Model == "" {
			cfg.Model = "claude-3-5-sonnet-latest"
		}
		if err := cfg.Validate(); err != nil {
			return nil, engerr.Wrap(engerr.KindInternal, "anthropic config", err)
		}
		return anthropic.New(cfg), nil
	case "gemini":
		cfg := &gemini.Config{APIKey: k.GeminiAPIKey, Model: model}
		if cfg.Model == "" {
			cfg.Model = "gemini-1.5-pro"
		}
		if err := cfg.Validate(); err != nil {
			return nil, engerr.Wrap(engerr.KindInternal, "gemini config", err)
		}
		return gemini.New(ctx, cfg)
	default:
		return nil, engerr.New(engerr.KindInternal, fmt.Sprintf("unknown provider %q", name))
	}
}
