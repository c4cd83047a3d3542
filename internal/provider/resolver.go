package provider

import (
	"log/slog"

	"github.com/majordomo-ai/majordomo/internal/config"
)

// Default model catalogs per provider, each model tagged with the
// capability tier it is routed under. A configured default model is
// prepended untiered when it is not already listed.
var (
	anthropicModels = []ModelInfo{
		{ID: "claude-sonnet-4-5", Tier: "standard"},
		{ID: "claude-haiku-4-5", Tier: "fast"},
		{ID: "claude-opus-4-1", Tier: "powerful"},
	}
	openAIModels = []ModelInfo{
		{ID: "gpt-4o", Tier: "standard"},
		{ID: "gpt-4o-mini", Tier: "fast"},
		{ID: "gpt-4.1", Tier: "powerful"},
	}
	groqModels = []ModelInfo{
		{ID: "llama-3.1-8b-instant", Tier: "fast"},
		{ID: "llama-3.3-70b-versatile", Tier: "standard"},
	}
)

// FromConfig builds a provider for every configured credential.
// Providers without an API key are skipped, not errors: routing decides
// later whether the remaining set can serve a request.
func FromConfig(cfg *config.Config) []Provider {
	var out []Provider

	if cfg.Providers.Anthropic.APIKey != "" {
		p, err := NewAnthropicProvider(
			cfg.Providers.Anthropic.APIKey, cfg.Providers.Anthropic.APIBase,
			cfg.Model.Name, anthropicModels, cfg.Model.MaxTokens,
		)
		if err != nil {
			slog.Warn("skipping provider", "provider", "anthropic", "error", err)
		} else {
			out = append(out, p)
		}
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		p, err := NewOpenAIProvider("openai",
			cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase,
			cfg.Model.Name, openAIModels,
		)
		if err != nil {
			slog.Warn("skipping provider", "provider", "openai", "error", err)
		} else {
			out = append(out, p)
		}
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		base := cfg.Providers.OpenRouter.APIBase
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		p, err := NewOpenAIProvider("openrouter",
			cfg.Providers.OpenRouter.APIKey, base,
			cfg.Model.Name, nil,
		)
		if err != nil {
			slog.Warn("skipping provider", "provider", "openrouter", "error", err)
		} else {
			out = append(out, p)
		}
	}
	if cfg.Providers.Groq.APIKey != "" {
		base := cfg.Providers.Groq.APIBase
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		p, err := NewOpenAIProvider("groq",
			cfg.Providers.Groq.APIKey, base,
			"", groqModels,
		)
		if err != nil {
			slog.Warn("skipping provider", "provider", "groq", "error", err)
		} else {
			out = append(out, p)
		}
	}
	return out
}
