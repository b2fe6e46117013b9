package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI SDK. It also serves
// OpenAI-compatible APIs via BaseURL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig carries OpenAI provider settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.HasImages() {
		parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		if req.Prompt != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			})
		}
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		message.MultiContent = parts
	} else {
		message.Content = req.Prompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	chatReq.Messages = append(chatReq.Messages, message)

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", &ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ErrProviderUnavailable{Provider: p.Name(), Err: fmt.Errorf("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func dataURL(img Image) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data))
}
