package reasoning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/prompt"
)

// OpenAIBackend sends the prompt as a single user message with one text part
// followed by one image_url part per frame. Any OpenAI-compatible server works
// through BaseURL.
type OpenAIBackend struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIBackend(cfg config.BackendConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai backend: api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIBackend{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai:" + b.model }

func (b *OpenAIBackend) Close() error { return nil }

func (b *OpenAIBackend) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: buildParts(p)},
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("openai returned empty content (finish_reason: %s)", resp.Choices[0].FinishReason)
	}
	return text, nil
}

func buildParts(p prompt.Prompt) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(p.Images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: p.Text,
	})
	for _, img := range p.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return parts
}
