package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.PromotionThreshold != defaultPromotionThreshold {
		t.Errorf("PromotionThreshold = %d, want %d", s.PromotionThreshold, defaultPromotionThreshold)
	}
	if s.BrokerBackend != "mock" {
		t.Errorf("BrokerBackend = %q, want mock", s.BrokerBackend)
	}
	if s.EmbeddingProvider != "primary" {
		t.Errorf("EmbeddingProvider = %q, want primary", s.EmbeddingProvider)
	}
	if !s.SearchEnableFilters {
		t.Error("SearchEnableFilters = false, want true by default")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROKER_BACKEND", "kafka")
	t.Setenv("PROMOTION_THRESHOLD", "5")
	t.Setenv("SEARCH_ENABLE_FILTERS", "false")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BrokerBackend != "kafka" {
		t.Errorf("BrokerBackend = %q, want kafka", s.BrokerBackend)
	}
	if s.PromotionThreshold != 5 {
		t.Errorf("PromotionThreshold = %d, want 5", s.PromotionThreshold)
	}
	if s.SearchEnableFilters {
		t.Error("SearchEnableFilters = true, want false")
	}
}

func TestValidateRejectsBadEmbeddingProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "bogus")
	if _, err := Load(); err == nil {
		t.Error("Load() with bad EMBEDDING_PROVIDER = nil error, want error")
	}
}

func TestValidateRejectsBadBrokerBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROKER_BACKEND", "bogus")
	if _, err := Load(); err == nil {
		t.Error("Load() with bad BROKER_BACKEND = nil error, want error")
	}
}

func TestValidateNilSettings(t *testing.T) {
	var s *CoreSettings
	if err := s.Validate(); err == nil {
		t.Error("Validate(nil) = nil error, want error")
	}
}

func TestEnvIntOrFallsBackOnUnparsable(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROMOTION_THRESHOLD", "not-a-number")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.PromotionThreshold != defaultPromotionThreshold {
		t.Errorf("PromotionThreshold = %d, want default %d on unparsable env", s.PromotionThreshold, defaultPromotionThreshold)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VECTOR_STORE_URL", "VECTOR_STORE_API_KEY", "DATABASE_URL",
		"LLM_API_KEY_PRIMARY", "LLM_API_KEY_FALLBACK", "LLM_API_KEY_EXTERNAL",
		"EMBEDDING_PROVIDER", "PROMOTION_THRESHOLD", "MAX_COLLECTIVE_CONTEXT",
		"STREAM_TIMEOUT_SECONDS", "CHUNK_TIMEOUT_SECONDS", "SEARCH_ENABLE_FILTERS",
		"CACHE_REDIS_URL", "BROKER_BACKEND", "BROKER_ADDRESS", "BROKER_TOPIC", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}
