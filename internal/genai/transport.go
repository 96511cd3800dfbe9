// internal/genai/transport.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"carepath/internal/common/config"
)

// GenerateRequest is the wire form of one inference call. Exactly one of
// Prompt or CachedContent+Prompt is used: with a cached handle, Prompt
// carries only the user portion.
type GenerateRequest struct {
	Model           string          `json:"model"`
	Prompt          string          `json:"prompt"`
	CachedContent   string          `json:"cached_content,omitempty"`
	Temperature     float64         `json:"temperature"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	ResponseSchema  json.RawMessage `json:"response_schema,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

// Transport performs one raw call against the inference API.
type Transport interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// statusError carries a non-2xx response for classification by the client.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// HTTPTransport talks to the generative API over HTTP. The per-call deadline
// comes from the request context; the http.Client itself carries no timeout.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPTransport(cfg config.GenAIConfig) *HTTPTransport {
	return &HTTPTransport{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
	}
}

func (t *HTTPTransport) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(payload))}
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
