package proof

import (
	"context"
	"strings"
	"time"

	"example.com/quest/internal/jsonx"
	"example.com/quest/internal/llm"
)

// TextExtractor is one OCR provider slot: typed input, text or error, no
// other contract. Failures are absorbed by the pipeline, never propagated.
type TextExtractor interface {
	Extract(ctx context.Context, image llm.Image) (string, error)
}

// VisionExtractor uses a vision-capable model chain purely for text
// extraction.
type VisionExtractor struct {
	chain   *llm.Chain
	timeout time.Duration
}

// NewVisionExtractor builds a VisionExtractor.
func NewVisionExtractor(chain *llm.Chain, timeout time.Duration) *VisionExtractor {
	return &VisionExtractor{chain: chain, timeout: timeout}
}

// Extract asks the model to transcribe visible text. A model that wraps its
// answer in a JSON object ({"text": ...}) is unwrapped; anything else is
// taken verbatim.
func (e *VisionExtractor) Extract(ctx context.Context, image llm.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, _, err := e.chain.Generate(ctx, llm.Request{
		System:    extractionSystemPrompt,
		Prompt:    "Extract all text from this image.",
		Images:    []llm.Image{image},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", err
	}

	var wrapped struct {
		Text string `json:"text"`
	}
	if jsonx.DecodeObject(text, &wrapped) && wrapped.Text != "" {
		return strings.TrimSpace(wrapped.Text), nil
	}
	return strings.TrimSpace(text), nil
}
