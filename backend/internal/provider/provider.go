package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Provider is the interface that all text-generation backends must implement
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Generate sends a single prompt and returns the free-text reply.
	// Implementations must not retry; failures are returned as *Error.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // ollama, openai, anthropic
	URL       string
	Model     string
	APIKey    string
	MaxTokens int
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewBaseProvider creates a new base provider. The HTTP client has no overall
// timeout; callers bound each call through its context.
func NewBaseProvider(baseURL, apiKey, model string) *BaseProvider {
	return &BaseProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// New builds the backend named by cfg.Backend.
func New(cfg Config) (Provider, error) {
	switch cfg.Backend {
	case "", "ollama":
		return NewOllamaProvider(cfg.URL, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.URL, cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.URL, cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
