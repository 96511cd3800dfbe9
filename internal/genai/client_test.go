// internal/genai/client_test.go
package genai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"carepath/internal/common/config"
	cperrors "carepath/internal/common/errors"
	"carepath/internal/common/logger"
	"carepath/internal/common/observability"
	"carepath/internal/inference"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records requests and replays a scripted response.
type fakeTransport struct {
	requests []*GenerateRequest
	text     string
	err      error
}

func (f *fakeTransport) Generate(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &GenerateResponse{Text: f.text}, nil
}

func testGenAIConfig() config.GenAIConfig {
	return config.GenAIConfig{
		Model:                "test-model",
		Timeout:              60000,
		MaxOutputTokens:      4096,
		MaxRequestsPerMinute: 15,
		MaxTokensPerMinute:   1_000_000,
		MaxRetries:           3,
		EnablePromptCaching:  true,
		CacheTTLSeconds:      3600,
	}
}

func TestClientCallSuccess(t *testing.T) {
	transport := &fakeTransport{text: `{"value":42}`}
	client := NewClientWithTransport(testGenAIConfig(), transport, nil, logger.NewNoOpLogger())

	result, err := client.Call(context.Background(), &inference.Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0.1,
		CallerLabel:  "test",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"value":42}`, string(result.Data))
	assert.Equal(t, "test-model", result.Metadata.Model)
	assert.Equal(t, "test", result.Metadata.CallerLabel)
	assert.False(t, result.Metadata.Cached)

	require.Len(t, transport.requests, 1)
	assert.Equal(t, "system\n\n---\n\nuser", transport.requests[0].Prompt)
	assert.Greater(t, client.Budget().Used(), 0)
}

func TestClientBudgetFailFast(t *testing.T) {
	cfg := testGenAIConfig()
	cfg.MaxTokensPerMinute = 2
	transport := &fakeTransport{text: `{}`}
	client := NewClientWithTransport(cfg, transport, nil, logger.NewNoOpLogger())

	_, err := client.Call(context.Background(), &inference.Request{
		SystemPrompt: "a long enough system prompt",
		UserPrompt:   "and a user prompt",
		CallerLabel:  "test",
	})
	require.Error(t, err)

	infErr, ok := cperrors.AsInference(err)
	require.True(t, ok)
	assert.Equal(t, cperrors.KindBudgetExceeded, infErr.Kind)
	assert.False(t, infErr.Retryable)
	// Fail-fast means the transport is never touched.
	assert.Empty(t, transport.requests)
}

func TestClientClassifiesStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  cperrors.FailureKind
		retryable bool
	}{
		{"rate limited", 429, cperrors.KindRateLimit, true},
		{"server error", 500, cperrors.KindServerError, true},
		{"unavailable", 503, cperrors.KindServerError, true},
		{"bad request", 400, cperrors.KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{err: &statusError{Status: tt.status, Body: "nope"}}
			client := NewClientWithTransport(testGenAIConfig(), transport, nil, logger.NewNoOpLogger())

			_, err := client.Call(context.Background(), &inference.Request{
				SystemPrompt: "s",
				UserPrompt:   "u",
				CallerLabel:  "test",
			})
			require.Error(t, err)

			infErr, ok := cperrors.AsInference(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, infErr.Kind)
			assert.Equal(t, tt.retryable, infErr.Retryable)
		})
	}
}

func TestClientValidatesResponseSchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "number"}},
		"required": ["value"]
	}`)

	transport := &fakeTransport{text: `{"wrong_field":"x"}`}
	client := NewClientWithTransport(testGenAIConfig(), transport, nil, logger.NewNoOpLogger())

	_, err := client.Call(context.Background(), &inference.Request{
		SystemPrompt:   "s",
		UserPrompt:     "u",
		ResponseSchema: schema,
		CallerLabel:    "test",
	})
	require.Error(t, err)

	infErr, ok := cperrors.AsInference(err)
	require.True(t, ok)
	assert.Equal(t, cperrors.KindUnknown, infErr.Kind)
	assert.False(t, infErr.Retryable)
}

func TestClientPromptCacheReuse(t *testing.T) {
	transport := &fakeTransport{text: `{}`}
	client := NewClientWithTransport(testGenAIConfig(), transport, nil, logger.NewNoOpLogger())

	req := &inference.Request{
		SystemPrompt: "shared system prompt",
		UserPrompt:   "first question",
		CallerLabel:  "test",
	}
	result, err := client.Call(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Metadata.Cached)

	req.UserPrompt = "second question"
	result, err = client.Call(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Metadata.Cached)

	require.Len(t, transport.requests, 2)
	assert.Empty(t, transport.requests[0].CachedContent)
	assert.NotEmpty(t, transport.requests[1].CachedContent)
	// The cached call carries only the user portion.
	assert.Equal(t, "second question", transport.requests[1].Prompt)
}

func TestClientReportsInferenceMetrics(t *testing.T) {
	obs := observability.New("genai-metrics-test")
	defer obs.Shutdown()

	transport := &fakeTransport{text: `{}`}
	client := NewClientWithTransport(testGenAIConfig(), transport, obs, logger.NewNoOpLogger())

	_, err := client.Call(context.Background(), &inference.Request{
		SystemPrompt: "s",
		UserPrompt:   "u",
		CallerLabel:  "test",
	})
	require.NoError(t, err)

	families, err := promclient.DefaultGatherer.Gather()
	require.NoError(t, err)
	var haveCalls, haveTokens bool
	for _, mf := range families {
		name := mf.GetName()
		if strings.Contains(name, "inference_calls") {
			haveCalls = true
		}
		if strings.Contains(name, "inference_tokens") {
			haveTokens = true
		}
	}
	assert.True(t, haveCalls, "inference call counter not exported")
	assert.True(t, haveTokens, "token counter not exported")
}

func TestClientCachingDisabled(t *testing.T) {
	cfg := testGenAIConfig()
	cfg.EnablePromptCaching = false
	transport := &fakeTransport{text: `{}`}
	client := NewClientWithTransport(cfg, transport, nil, logger.NewNoOpLogger())

	req := &inference.Request{SystemPrompt: "s", UserPrompt: "u", CallerLabel: "test"}
	for i := 0; i < 2; i++ {
		result, err := client.Call(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, result.Metadata.Cached)
	}
	assert.Empty(t, transport.requests[1].CachedContent)
}
