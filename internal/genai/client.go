// Package genai wraps the external generative inference API with the
// resilience layer shared by every agent: rate limiting, token budgeting,
// prompt-handle caching, response-schema enforcement and failure
// classification. Retry lives one level up, in Retrier.
package genai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"carepath/internal/common/config"
	cperrors "carepath/internal/common/errors"
	"carepath/internal/common/logger"
	"carepath/internal/common/observability"
	"carepath/internal/inference"

	"github.com/xeipuuv/gojsonschema"
)

// Client is the resilient caller: one Call issues at most one request to
// the external API, classified on failure. It implements inference.Caller.
type Client struct {
	transport Transport
	limiter   *RateLimiter
	budget    *TokenBudget
	cache     *PromptCache

	model           string
	maxOutputTokens int
	callTimeout     time.Duration
	cacheEnabled    bool

	obs *observability.Observability
	log logger.Logger
}

// NewClient builds a Client with an HTTP transport from config.
func NewClient(cfg config.GenAIConfig, obs *observability.Observability, log logger.Logger) *Client {
	return NewClientWithTransport(cfg, NewHTTPTransport(cfg), obs, log)
}

// NewClientWithTransport builds a Client around an arbitrary transport.
// Tests inject fakes here.
func NewClientWithTransport(cfg config.GenAIConfig, transport Transport, obs *observability.Observability, log logger.Logger) *Client {
	return &Client{
		transport:       transport,
		limiter:         NewRateLimiter(cfg.MaxRequestsPerMinute, time.Minute),
		budget:          NewTokenBudget(cfg.MaxTokensPerMinute, time.Minute, log),
		cache:           NewPromptCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		callTimeout:     config.GetDuration(cfg.Timeout),
		cacheEnabled:    cfg.EnablePromptCaching,
		obs:             obs,
		log:             log.With(map[string]interface{}{"component": "genai"}),
	}
}

// Budget exposes the shared token budget, mainly for tests and status
// reporting.
func (c *Client) Budget() *TokenBudget { return c.budget }

// Call performs one inference request: rate-limit slot, budget check,
// cache resolution, transport call, schema validation, usage recording.
func (c *Client) Call(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, cperrors.New(cperrors.KindTimeout, "deadline expired while waiting for rate-limit slot")
		}
		return nil, err
	}

	estimated := EstimateTokens(req.SystemPrompt) + EstimateTokens(req.UserPrompt)
	if !c.budget.CanAfford(estimated) {
		c.log.Warn("budget check rejected call", map[string]interface{}{
			"caller":    req.CallerLabel,
			"estimated": estimated,
		})
		return nil, cperrors.NewBudgetExceeded(estimated)
	}

	var handle string
	cached := false
	if c.cacheEnabled {
		handle, cached = c.cache.Handle(req.CallerLabel, req.SystemPrompt)
	}

	greq := &GenerateRequest{
		Model:           c.model,
		Temperature:     req.Temperature,
		MaxOutputTokens: c.maxOutputTokens,
		ResponseSchema:  req.ResponseSchema,
	}
	var promptSent string
	if cached {
		greq.CachedContent = handle
		greq.Prompt = req.UserPrompt
		promptSent = req.UserPrompt
	} else {
		greq.Prompt = req.SystemPrompt + "\n\n---\n\n" + req.UserPrompt
		promptSent = req.SystemPrompt + req.UserPrompt
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.transport.Generate(callCtx, greq)
	duration := time.Since(start)
	if err != nil {
		infErr := c.classify(err)
		c.recordInference(ctx, req.CallerLabel, string(infErr.Kind), cached)
		c.log.Error("inference call failed", map[string]interface{}{
			"caller":     req.CallerLabel,
			"kind":       string(infErr.Kind),
			"retryable":  infErr.Retryable,
			"durationMs": duration.Milliseconds(),
		})
		return nil, infErr
	}

	if len(req.ResponseSchema) > 0 {
		if err := validateSchema(req.ResponseSchema, resp.Text); err != nil {
			return nil, cperrors.New(cperrors.KindUnknown, err.Error())
		}
	}

	c.budget.Record(promptSent, resp.Text)
	c.recordInference(ctx, req.CallerLabel, "success", cached)
	if c.obs != nil {
		c.obs.AddTokens(ctx, int64(EstimateTokens(promptSent)+EstimateTokens(resp.Text)))
	}

	c.log.Info("inference call succeeded", map[string]interface{}{
		"caller":     req.CallerLabel,
		"cached":     cached,
		"durationMs": duration.Milliseconds(),
	})

	return &inference.Result{
		Data: json.RawMessage(resp.Text),
		Metadata: inference.Metadata{
			Model:       c.model,
			DurationMS:  duration.Milliseconds(),
			Cached:      cached,
			CallerLabel: req.CallerLabel,
		},
	}, nil
}

func (c *Client) recordInference(ctx context.Context, caller, outcome string, cached bool) {
	if c.obs != nil {
		c.obs.RecordInference(ctx, caller, outcome, cached)
	}
}

// classify maps a transport error into the fixed failure taxonomy.
func (c *Client) classify(err error) *cperrors.InferenceError {
	var se *statusError
	if stderrors.As(err, &se) {
		return cperrors.FromStatusCode(se.Status, se.Body)
	}
	return cperrors.Classify(err)
}

func validateSchema(schema json.RawMessage, text string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewStringLoader(text),
	)
	if err != nil {
		return stderrors.New("response is not valid JSON: " + err.Error())
	}
	if !result.Valid() {
		msg := "response does not conform to schema"
		if errs := result.Errors(); len(errs) > 0 {
			msg += ": " + errs[0].String()
		}
		return stderrors.New(msg)
	}
	return nil
}
