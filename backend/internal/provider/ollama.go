package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultOllamaURL is the generate endpoint of a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434/api/generate"

// OllamaProvider implements the Provider interface for Ollama's generate API
type OllamaProvider struct {
	*BaseProvider
}

// OllamaGenerateRequest is the JSON body sent to POST /api/generate
type OllamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// OllamaGenerateResponse is the non-streaming reply of /api/generate
type OllamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaProvider creates a new Ollama provider. url is the full generate
// endpoint, e.g. http://localhost:11434/api/generate.
func NewOllamaProvider(url, model string) *OllamaProvider {
	if url == "" {
		url = DefaultOllamaURL
	}
	if model == "" {
		model = "mistral"
	}
	return &OllamaProvider{
		BaseProvider: NewBaseProvider(url, "", model),
	}
}

// Name returns the provider identifier
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// Generate posts the prompt and returns the "response" field.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(OllamaGenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Backend: o.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindMalformed, Backend: o.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", wrap(o.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrap(o.Name(), fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{
			Kind:       KindApplication,
			Backend:    o.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, truncate(raw, 200)),
		}
	}

	var out OllamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{Kind: KindMalformed, Backend: o.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return out.Response, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
