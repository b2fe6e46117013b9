package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Chain walks an ordered list of providers until one returns usable text.
// Every provider failure is absorbed; the chain only errors when the whole
// list is exhausted.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
	onFail    func(provider string)
}

// ChainOption customises a Chain.
type ChainOption func(*Chain)

// WithChainLogger attaches a logger for per-provider failure logging.
func WithChainLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger }
}

// WithFailureHook registers a callback invoked with the provider name on each
// provider failure. Used to feed fallback metrics.
func WithFailureHook(hook func(provider string)) ChainOption {
	return func(c *Chain) { c.onFail = hook }
}

// NewChain builds a Chain from providers in priority order.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{providers: providers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Empty reports whether the chain has no providers configured.
func (c *Chain) Empty() bool { return len(c.providers) == 0 }

// ErrChainExhausted is returned when every provider in the chain failed.
var ErrChainExhausted = errors.New("all providers failed")

// Generate tries each provider in order, returning the first successful
// response together with the provider's name.
func (c *Chain) Generate(ctx context.Context, req Request) (string, string, error) {
	for _, p := range c.providers {
		text, err := p.Generate(ctx, req)
		if err == nil && text != "" {
			return text, p.Name(), nil
		}
		if c.onFail != nil {
			c.onFail(p.Name())
		}
		c.logger.Warn("provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	return "", "", ErrChainExhausted
}
