package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/praxos/paperscout/internal/metrics"
)

// Request is a single synchronous completion request. No streaming.
type Request struct {
	Prompt    string `json:"prompt"`
	System    string `json:"system,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	// Temperature of 0 means "use the configured default"; an exact
	// temperature of zero is not expressible per request.
	Temperature float64 `json:"temperature,omitempty"`
	// Purpose labels the request in logs and metrics (e.g. "keywords",
	// "synthesis"). Not sent to the model service.
	Purpose string `json:"-"`
}

// Response carries the completion text plus usage metadata from the model
// service.
type Response struct {
	Text       string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
	Provider   string `json:"provider"`
}

// Client is the language-model collaborator: a synchronous prompt-in,
// text-out call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Config holds HTTP client settings for the completion endpoint.
type Config struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// HTTPClient calls a completion service over JSON/HTTP.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient returns a client for cfg.URL with a bounded per-request
// timeout.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// Complete sends req and returns the completion. Non-2xx statuses and
// undecodable bodies are errors; the caller decides whether the text itself
// is well formed.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body := completionRequest{
		Prompt:      req.Prompt,
		System:      req.System,
		Model:       c.cfg.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.cfg.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.RecordLLMRequest(req.Purpose, "error", 0)
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordLLMRequest(req.Purpose, "error", 0)
		return nil, fmt.Errorf("HTTP %d from completion service", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordLLMRequest(req.Purpose, "error", 0)
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	metrics.RecordLLMRequest(req.Purpose, "ok", out.TokensUsed)
	c.logger.Debug("completion",
		zap.String("purpose", req.Purpose),
		zap.String("model", out.ModelUsed),
		zap.Int("tokens", out.TokensUsed),
		zap.Duration("duration", time.Since(start)),
	)
	return &out, nil
}
