package llm

import (
	"context"

	"go.uber.org/zap"
)

// Config carries credentials for every provider slot. Empty keys leave the
// slot unconfigured; the service degrades to heuristics when no slot is set.
type Config struct {
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Anthropic AnthropicConfig
}

// NewChainFromConfig builds the fallback chain from whatever providers are
// configured, in priority order: OpenAI, Gemini, Anthropic. Provider
// construction failures are logged and skipped so a single bad credential
// never takes the service down.
func NewChainFromConfig(ctx context.Context, cfg Config, logger *zap.Logger, opts ...ChainOption) *Chain {
	var providers []Provider

	if cfg.OpenAI.APIKey != "" {
		if p, err := NewOpenAIProvider(cfg.OpenAI); err == nil {
			providers = append(providers, p)
		} else {
			logger.Warn("skipping openai provider", zap.Error(err))
		}
	}
	if cfg.Gemini.APIKey != "" {
		if p, err := NewGeminiProvider(ctx, cfg.Gemini); err == nil {
			providers = append(providers, p)
		} else {
			logger.Warn("skipping gemini provider", zap.Error(err))
		}
	}
	if cfg.Anthropic.APIKey != "" {
		if p, err := NewAnthropicProvider(cfg.Anthropic); err == nil {
			providers = append(providers, p)
		} else {
			logger.Warn("skipping anthropic provider", zap.Error(err))
		}
	}

	opts = append(opts, WithChainLogger(logger))
	return NewChain(providers, opts...)
}
