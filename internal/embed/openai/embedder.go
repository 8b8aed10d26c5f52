// Package openai provides the embedding provider over any OpenAI-compatible
// API. The client is built lazily on the first Embed call so a missing or
// misconfigured provider does not slow down process startup; the first
// failure is remembered and returned for every subsequent call.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	cfg Config

	initOnce sync.Once
	client   *openai.Client
	initErr  error

	model      openai.EmbeddingModel
	dimensions int
	maxChars   int
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is the fixed output dimensionality; 0 lets the model decide.
	Dimensions int
	// MaxInputChars truncates longer inputs before encoding. An approximate
	// embedding of a prefix is acceptable for similarity ranking.
	MaxInputChars int
	Provider      string
	Logger        *zap.Logger
}

// NewEmbedder creates a lazily-initialized OpenAI-compatible embedding provider.
func NewEmbedder(cfg Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = 3000
	}
	return &Embedder{
		cfg:        cfg,
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		maxChars:   maxChars,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// init builds the API client exactly once. Concurrent first calls share the
// same transition; the outcome (client or error) is final for the process.
func (e *Embedder) init() error {
	e.initOnce.Do(func() {
		if e.cfg.APIKey == "" {
			e.initErr = fmt.Errorf("%w: no API key configured", domain.ErrEmbeddingUnavailable)
			e.logger.Warn("Embedding provider unavailable", zap.Error(e.initErr))
			return
		}
		if e.cfg.Model == "" {
			e.initErr = fmt.Errorf("%w: no model configured", domain.ErrEmbeddingUnavailable)
			e.logger.Warn("Embedding provider unavailable", zap.Error(e.initErr))
			return
		}

		clientCfg := openai.DefaultConfig(e.cfg.APIKey)
		if e.cfg.BaseURL != "" {
			clientCfg.BaseURL = e.cfg.BaseURL
		}
		e.client = openai.NewClientWithConfig(clientCfg)

		e.logger.Info("Embedding provider initialized",
			zap.String("provider", e.provider),
			zap.String("model", e.cfg.Model),
			zap.Int("dimensions", e.dimensions),
		)
	})
	return e.initErr
}

// Embed implements domain.Embedder. Returns the vector and token usage with
// transport-level metrics. Deterministic: the same input yields the same
// vector on every call.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.init(); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.cfg.Model, "unavailable").Inc()
		return domain.EmbeddingResult{}, err
	}
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty text", domain.ErrInvalidParameter)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{truncate(text, e.maxChars)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.cfg.Model, "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.cfg.Model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.cfg.Model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.cfg.Model).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.cfg.Model, "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.cfg.Model, "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.init(); err != nil {
		return err
	}
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// truncate cuts text to at most maxChars runes on a rune boundary.
func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrEmbeddingUnavailable for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
