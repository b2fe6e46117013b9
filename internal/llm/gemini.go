package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Google Gemini SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiConfig carries Gemini provider settings.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	if req.Prompt != "" {
		parts = append(parts, &genai.Part{Text: req.Prompt})
	}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MIME, Data: img.Data},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", &ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}

	text := result.Text()
	if text == "" {
		return "", &ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }
