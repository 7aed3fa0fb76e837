package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	*BaseProvider
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(baseURL, apiKey, model string, maxTokens int) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	base := NewBaseProvider(baseURL, apiKey, model)

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithHTTPClient(base.Client),
	}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}

	return &AnthropicProvider{
		BaseProvider: base,
		client:       anthropic.NewClient(opts...),
		maxTokens:    int64(maxTokens),
	}
}

// Name returns the provider identifier
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate sends the prompt and concatenates the text blocks of the reply.
func (a *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", wrap(a.Name(), err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &Error{Kind: KindMalformed, Backend: a.Name(), Err: errors.New("no text content in message")}
	}
	return sb.String(), nil
}
