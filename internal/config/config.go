// Package config loads the core's process-wide settings from environment
// variables into a single typed struct, replacing the dynamic dict-shaped
// configuration the source threaded through every layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CoreSettings is the explicit, typed configuration object for the whole
// process. Every field corresponds to one of the environment variables
// enumerated in the specification.
type CoreSettings struct {
	// VectorStoreURL and VectorStoreAPIKey address the Qdrant backend.
	VectorStoreURL    string
	VectorStoreAPIKey string

	// DatabaseURL addresses the relational backend (Postgres DSN).
	DatabaseURL string

	// LLMAPIKeyPrimary authenticates every LLM tier backed by the
	// first-party provider (PRO/FLASH/LITE). LLMAPIKeyFallback is passed to
	// the gateway, which does not use it. LLMAPIKeyExternal is loaded for the
	// EXTERNAL multiplexer but nothing in the server reads it.
	LLMAPIKeyPrimary  string
	LLMAPIKeyFallback string
	LLMAPIKeyExternal string

	// EmbeddingProvider selects which embedding endpoint to call.
	EmbeddingProvider string

	// PromotionThreshold is the distinct-contributor count required before a
	// CollectiveFact is promoted. Default 3.
	PromotionThreshold int

	// MaxCollectiveContext bounds how many collective facts are injected
	// into a single turn's context. Default 10.
	MaxCollectiveContext int

	// StreamTimeoutSeconds is the whole-stream SSE deadline. Default 120.
	StreamTimeoutSeconds int

	// ChunkTimeoutSeconds is the inter-chunk SSE silence deadline. Default 30.
	ChunkTimeoutSeconds int

	// SearchEnableFilters toggles whether retrieval applies collection
	// filters by default. Default true (disabled only by an explicit
	// apply_filters=false call argument, never by this setting alone unless
	// the caller omits the argument).
	SearchEnableFilters bool

	// CacheRedisURL is optional; when empty the cache degrades to
	// memory-only.
	CacheRedisURL string

	// BrokerBackend selects the background task queue transport: "kafka",
	// "pulsar", or "mock" (in-process, used in tests and single-node runs).
	BrokerBackend string
	BrokerAddress string
	BrokerTopic   string

	// LogLevel controls the structured logger's verbosity.
	LogLevel string
}

const (
	defaultPromotionThreshold   = 3
	defaultMaxCollectiveContext = 10
	defaultStreamTimeoutSeconds = 120
	defaultChunkTimeoutSeconds  = 30
)

// Load reads CoreSettings from the process environment and applies defaults
// for every optional field, the way the teacher's XConfig.Validate methods
// apply defaults in place rather than failing on absence.
func Load() (*CoreSettings, error) {
	s := &CoreSettings{
		VectorStoreURL:       os.Getenv("VECTOR_STORE_URL"),
		VectorStoreAPIKey:    os.Getenv("VECTOR_STORE_API_KEY"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		LLMAPIKeyPrimary:     os.Getenv("LLM_API_KEY_PRIMARY"),
		LLMAPIKeyFallback:    os.Getenv("LLM_API_KEY_FALLBACK"),
		LLMAPIKeyExternal:    os.Getenv("LLM_API_KEY_EXTERNAL"),
		EmbeddingProvider:    envOr("EMBEDDING_PROVIDER", "primary"),
		PromotionThreshold:   envIntOr("PROMOTION_THRESHOLD", defaultPromotionThreshold),
		MaxCollectiveContext: envIntOr("MAX_COLLECTIVE_CONTEXT", defaultMaxCollectiveContext),
		StreamTimeoutSeconds: envIntOr("STREAM_TIMEOUT_SECONDS", defaultStreamTimeoutSeconds),
		ChunkTimeoutSeconds:  envIntOr("CHUNK_TIMEOUT_SECONDS", defaultChunkTimeoutSeconds),
		SearchEnableFilters:  envBoolOr("SEARCH_ENABLE_FILTERS", true),
		CacheRedisURL:        os.Getenv("CACHE_REDIS_URL"),
		BrokerBackend:        envOr("BROKER_BACKEND", "mock"),
		BrokerAddress:        os.Getenv("BROKER_ADDRESS"),
		BrokerTopic:          envOr("BROKER_TOPIC", "agentcore.background"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects configuration combinations that cannot yield a working
// process. It does not require the optional upstream credentials to be
// present; components that need them surface health-check failures instead,
// per the "operates with degraded context" partial-data policy in spec §7.
func (s *CoreSettings) Validate() error {
	if s == nil {
		return fmt.Errorf("config: settings is nil")
	}
	if s.PromotionThreshold < 1 {
		return fmt.Errorf("config: PROMOTION_THRESHOLD must be >= 1, got %d", s.PromotionThreshold)
	}
	if s.MaxCollectiveContext < 1 {
		return fmt.Errorf("config: MAX_COLLECTIVE_CONTEXT must be >= 1, got %d", s.MaxCollectiveContext)
	}
	if s.StreamTimeoutSeconds < 1 {
		return fmt.Errorf("config: STREAM_TIMEOUT_SECONDS must be >= 1, got %d", s.StreamTimeoutSeconds)
	}
	if s.ChunkTimeoutSeconds < 1 {
		return fmt.Errorf("config: CHUNK_TIMEOUT_SECONDS must be >= 1, got %d", s.ChunkTimeoutSeconds)
	}
	switch s.EmbeddingProvider {
	case "primary", "alternate":
	default:
		return fmt.Errorf("config: EMBEDDING_PROVIDER must be primary or alternate, got %q", s.EmbeddingProvider)
	}
	switch s.BrokerBackend {
	case "kafka", "pulsar", "mock":
	default:
		return fmt.Errorf("config: BROKER_BACKEND must be kafka, pulsar, or mock, got %q", s.BrokerBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
