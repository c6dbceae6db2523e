package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/limiter"
)

// OpenAIProvider implements Provider for OpenAI-compatible APIs.
type OpenAIProvider struct{}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{}
}

// Complete performs a chat completion using the profile's base URL and
// API key.
func (p *OpenAIProvider) Complete(ctx context.Context, profile catalog.WorkerProfile, prompt string) (core.Answer, error) {
	config := openai.DefaultConfig(os.Getenv(profile.APIKeyEnv))
	if profile.BaseURL != "" {
		config.BaseURL = profile.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	request := openai.ChatCompletionRequest{
		Model: profile.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
	}

	response, err := client.CreateChatCompletion(ctx, request)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return core.Answer{}, limiter.NewHTTPError(apiErr.HTTPStatusCode, apiErr.Message, "")
		}
		return core.Answer{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return core.Answer{}, fmt.Errorf("openai returned no choices for model %s", profile.Model)
	}

	return core.Answer{
		Text: response.Choices[0].Message.Content,
		Usage: core.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}, nil
}
