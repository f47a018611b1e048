package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"cloudesk/internal/config"
	"cloudesk/internal/metrics"
	"cloudesk/internal/models"
)

// ErrModelUnavailable means every model in the fallback chain failed.
// Callers substitute a knowledge-only or apologetic reply.
var ErrModelUnavailable = errors.New("all models in the fallback chain are unavailable")

// Client calls an OpenAI-compatible chat completion API with an ordered
// list of model identifiers, advancing down the chain on quota, 5xx or
// transport failures.
type Client struct {
	baseURL    string
	apiKey     string
	chain      []config.ModelSpec
	httpClient *http.Client
	usage      *UsageCounter

	rateLimit rate.Limit
	burst     int
	limiters  sync.Map // model id -> *rate.Limiter
	sem       chan struct{}
}

// NewClient builds the client. usage must be shared process-wide so
// token accounting covers every call site.
func NewClient(cfg *config.Config, chain []config.ModelSpec, usage *UsageCounter) *Client {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Client{
		baseURL:    cfg.LLMBaseURL,
		apiKey:     cfg.LLMAPIKey,
		chain:      chain,
		httpClient: &http.Client{Timeout: cfg.LLMTimeout},
		usage:      usage,
		rateLimit:  rate.Limit(cfg.ModelRateLimit),
		burst:      cfg.ModelRateBurst,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Usage returns the shared usage counter.
func (c *Client) Usage() *UsageCounter { return c.usage }

// attemptError carries the classification of one failed attempt.
type attemptError struct {
	err       error
	retryable bool
}

// Generate runs the prompt through the fallback chain and returns the
// first successful completion. On total failure the returned result is
// still non-nil and carries the token usage accumulated across the
// failed attempts, alongside ErrModelUnavailable.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (*models.ModelCallResult, error) {
	result := &models.ModelCallResult{FallbackIndex: -1}

	for i, spec := range c.chain {
		content, usage, aerr := c.attempt(ctx, spec, systemPrompt, userPrompt)
		result.Usage.Add(usage)
		c.usage.Add(usage)
		metrics.TokensUsed.WithLabelValues("prompt").Add(float64(usage.Prompt))
		metrics.TokensUsed.WithLabelValues("completion").Add(float64(usage.Completion))

		if aerr == nil {
			result.ModelIDUsed = spec.ID
			result.Content = content
			result.FallbackIndex = i
			metrics.ModelCalls.WithLabelValues(spec.ID, "success").Inc()
			if i > 0 {
				slog.Info("model fallback engaged", "model", spec.ID, "fallback_index", i)
			}
			return result, nil
		}

		metrics.ModelCalls.WithLabelValues(spec.ID, "failure").Inc()
		slog.Warn("model attempt failed", "model", spec.ID, "fallback_index", i, "error", aerr.err)

		if !aerr.retryable {
			return result, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, spec.ID, aerr.err)
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %v", ErrModelUnavailable, ctx.Err())
		}
	}

	return result, ErrModelUnavailable
}

// attempt performs one model call. Usage is returned even on failure,
// since a failed call may still have consumed quota.
func (c *Client) attempt(ctx context.Context, spec config.ModelSpec, systemPrompt, userPrompt string) (string, models.TokenUsage, *attemptError) {
	var usage models.TokenUsage

	if err := c.limiter(spec.ID).Wait(ctx); err != nil {
		return "", usage, &attemptError{err: err, retryable: true}
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", usage, &attemptError{err: ctx.Err(), retryable: true}
	}

	messages := []map[string]interface{}{}
	if systemPrompt != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]interface{}{"role": "user", "content": userPrompt})

	reqBody := map[string]interface{}{
		"model":    spec.ID,
		"messages": messages,
		"stream":   false,
	}
	if spec.MaxTokens > 0 {
		reqBody["max_tokens"] = spec.MaxTokens
	}
	if spec.Temperature > 0 {
		reqBody["temperature"] = spec.Temperature
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", usage, &attemptError{err: fmt.Errorf("failed to marshal request: %w", err), retryable: false}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqJSON))
	if err != nil {
		return "", usage, &attemptError{err: fmt.Errorf("failed to create request: %w", err), retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage, &attemptError{err: fmt.Errorf("request failed: %w", err), retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		// Quota and server-side errors advance the chain; other client
		// errors (bad key, malformed request) would fail every model
		// identically, so the chain aborts.
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", usage, &attemptError{err: err, retryable: retryable}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", usage, &attemptError{err: fmt.Errorf("failed to decode response: %w", err), retryable: true}
	}

	usage.Prompt = result.Usage.PromptTokens
	usage.Completion = result.Usage.CompletionTokens

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", usage, &attemptError{err: errors.New("empty completion"), retryable: true}
	}

	return result.Choices[0].Message.Content, usage, nil
}

func (c *Client) limiter(modelID string) *rate.Limiter {
	if v, ok := c.limiters.Load(modelID); ok {
		return v.(*rate.Limiter)
	}
	limit := c.rateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := c.burst
	if burst <= 0 {
		burst = 1
	}
	v, _ := c.limiters.LoadOrStore(modelID, rate.NewLimiter(limit, burst))
	return v.(*rate.Limiter)
}
