// Package embedding adapts a single external embedding endpoint into 1536-
// dimensional vectors for queries and documents, per spec §2/§6. Grounded on
// the teacher's ai/extensions/models/openai EmbeddingModel (Config+Validate,
// openai-go client) generalized with a provider switch, a singleflight
// dedup for identical concurrent calls, and exponential backoff retry.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Dimensions is the fixed vector width the rest of the core assumes.
const Dimensions = 1536

// CallTimeout is the per-call timeout from spec §5.
const CallTimeout = 15 * time.Second

const maxRetryAttempts = 3

// defaultRequestsPerSecond caps outbound embedding calls against the
// upstream provider's own rate limit, independent of the singleflight dedup
// (which only collapses identical concurrent texts, not overall call rate).
const defaultRequestsPerSecond = 20

// Config configures the embedding adapter.
type Config struct {
	// Provider selects which upstream to call: "primary" or "alternate".
	Provider string
	// PrimaryAPIKey / AlternateAPIKey authenticate the respective provider.
	PrimaryAPIKey   string
	AlternateAPIKey string
	// PrimaryBaseURL / AlternateBaseURL override the API base for each
	// provider; empty uses the provider SDK's default.
	PrimaryBaseURL   string
	AlternateBaseURL string
	// Model is the embedding model name to request.
	Model string
	// RequestsPerSecond caps outbound calls to the upstream provider;
	// <=0 defaults to defaultRequestsPerSecond.
	RequestsPerSecond float64
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("embedding: config is nil")
	}
	switch c.Provider {
	case "primary", "alternate":
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRequestsPerSecond
	}
	return nil
}

// Adapter produces embeddings for queries and documents via the configured
// provider.
type Adapter struct {
	client   openai.Client
	model    string
	provider string
	group    singleflight.Group
	limiter  *rate.Limiter
}

// New builds an Adapter from Config.
func New(cfg *Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{}
	switch cfg.Provider {
	case "primary":
		if cfg.PrimaryAPIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.PrimaryAPIKey))
		}
		if cfg.PrimaryBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.PrimaryBaseURL))
		}
	case "alternate":
		if cfg.AlternateAPIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.AlternateAPIKey))
		}
		if cfg.AlternateBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.AlternateBaseURL))
		}
	}

	return &Adapter{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		provider: cfg.Provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Embed produces a single 1536-dim vector for text, deduplicating identical
// concurrent calls via singleflight and retrying transient upstream errors
// with exponential backoff (max 3 attempts, spec §5).
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces vectors for a batch of texts in one upstream call.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	key := dedupeKey(texts)
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.embedWithRetry(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return v.([][]float32), nil
}

func (a *Adapter) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		defer cancel()

		if a.limiter != nil {
			if err := a.limiter.Wait(callCtx); err != nil {
				return backoff.Permanent(fmt.Errorf("embedding: rate limiter wait failed: %w", err))
			}
		}

		resp, err := a.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Model: a.model,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		})
		if err != nil {
			return fmt.Errorf("embedding: upstream call failed: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(resp.Data)))
		}

		out := make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for j, f := range d.Embedding {
				vec[j] = float32(f)
			}
			out[i] = vec
		}
		result = out
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetryAttempts-1)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func dedupeKey(texts []string) string {
	key := ""
	for _, t := range texts {
		key += t + "\x00"
	}
	return key
}
