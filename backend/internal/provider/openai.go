package provider

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible APIs
// (Groq, DeepSeek, vLLM, LM Studio, ...).
type OpenAIProvider struct {
	*BaseProvider
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	base := NewBaseProvider(baseURL, apiKey, model)

	// Retries belong to the augmentation orchestrator, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(base.Client),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		BaseProvider: base,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the provider identifier
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends the prompt as a single user message.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", wrap(o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Backend: o.Name(), Err: errors.New("no choices in completion")}
	}
	return resp.Choices[0].Message.Content, nil
}
