package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.4")
	v, err := envFloat("TEST_FLOAT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.4 {
		t.Fatalf("expected 0.4, got %f", v)
	}
}

func TestEnvFloatInvalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "many")
	_, err := envFloat("TEST_FLOAT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-numeric value, got nil")
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Thresholds.MaxCacheSize != 10000 {
		t.Fatalf("expected default max cache size 10000, got %d", cfg.Thresholds.MaxCacheSize)
	}
	if cfg.Thresholds.RequestTimeout != 45*time.Second {
		t.Fatalf("expected default request timeout 45s, got %s", cfg.Thresholds.RequestTimeout)
	}
	if cfg.Router.CostWeight != 0.4 || cfg.Router.LatencyWeight != 0.4 || cfg.Router.AvailabilityWeight != 0.2 {
		t.Fatalf("expected default router weights 0.4/0.4/0.2, got %+v", cfg.Router)
	}
	if cfg.CircuitBreaker.FailureThreshold != 5 {
		t.Fatalf("expected default failure threshold 5, got %d", cfg.CircuitBreaker.FailureThreshold)
	}
	if cfg.CircuitBreaker.BaseReset != 30*time.Second {
		t.Fatalf("expected default base reset 30s, got %s", cfg.CircuitBreaker.BaseReset)
	}
	if len(cfg.Backends) == 0 {
		t.Fatal("expected at least one default backend")
	}
}

func TestLoadFailsOnInvalidInteger(t *testing.T) {
	t.Setenv("CLAUDETTE_MAX_CACHE_SIZE", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid CLAUDETTE_MAX_CACHE_SIZE")
	}
	if !contains(err.Error(), "CLAUDETTE_MAX_CACHE_SIZE") {
		t.Fatalf("error should mention CLAUDETTE_MAX_CACHE_SIZE, got: %s", err.Error())
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("CLAUDETTE_MAX_CACHE_SIZE", "abc")
	t.Setenv("CLAUDETTE_BREAKER_FAILURE_THRESHOLD", "xyz")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !contains(got, "CLAUDETTE_MAX_CACHE_SIZE") || !contains(got, "CLAUDETTE_BREAKER_FAILURE_THRESHOLD") {
		t.Fatalf("error should mention both invalid vars, got: %s", got)
	}
}

func TestLoadRejectsZeroCacheSize(t *testing.T) {
	t.Setenv("CLAUDETTE_MAX_CACHE_SIZE", "0")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to reject a zero max cache size")
	}
}

func TestLoadHonorsRouterWeightOverrides(t *testing.T) {
	t.Setenv("CLAUDETTE_ROUTER_COST_WEIGHT", "0.6")
	t.Setenv("CLAUDETTE_ROUTER_LATENCY_WEIGHT", "0.3")
	t.Setenv("CLAUDETTE_ROUTER_AVAILABILITY_WEIGHT", "0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.Router.CostWeight != 0.6 || cfg.Router.LatencyWeight != 0.3 || cfg.Router.AvailabilityWeight != 0.1 {
		t.Fatalf("expected overridden router weights, got %+v", cfg.Router)
	}
}

func TestLoadHonorsBackendToggle(t *testing.T) {
	t.Setenv("CLAUDETTE_OLLAMA_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if !cfg.Backends["ollama"].Enabled {
		t.Fatal("expected ollama backend to be enabled")
	}
}

func TestLoadForceMemoryStore(t *testing.T) {
	t.Setenv("CLAUDETTE_FORCE_MEMORY_STORE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if !cfg.ForceMemoryStore {
		t.Fatal("expected ForceMemoryStore true")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
