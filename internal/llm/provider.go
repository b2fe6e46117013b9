// Package llm abstracts the AI evaluators used for proof scoring and
// coaching. Providers return free-form model text; callers are responsible
// for defensive parsing, so a provider never promises structured output.
package llm

import "context"

// Provider is the core abstraction for model interaction. A provider that
// receives image parts and cannot process them must return
// ErrUnsupportedInput rather than silently dropping them.
type Provider interface {
	// Generate sends a prompt (and optional image parts) to the model and
	// returns the raw response text.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// Image is an inline image part of a request.
type Image struct {
	MIME string
	Data []byte
}

// Request describes what to send to the model.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Prompt is the user message.
	Prompt string

	// Images are optional inline image parts for vision-capable providers.
	Images []Image

	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int

	// Temperature controls randomness. Range 0.0 - 1.0, default 0.0.
	Temperature float64
}

// HasImages reports whether the request carries image parts.
func (r Request) HasImages() bool {
	return len(r.Images) > 0
}
