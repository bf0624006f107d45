// Package config loads and validates application configuration from
// environment variables, plus an optional JSON/YAML-free config object for
// backends, thresholds, router weights, and circuit breaker tuning.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BackendConfig is one entry of the backends map.
type BackendConfig struct {
	Enabled         bool
	Priority        int
	CostPer1KTokens float64
	Model           string
	BaseURL         string
	APIKeyRef       string // env var name holding the credential, never the key itself
}

// Features toggles optional subsystems.
type Features struct {
	Caching              bool
	CostOptimization     bool
	PerformanceMonitoring bool
	SmartRouting         bool
}

// Thresholds tunes the cache and request-handling limits.
type Thresholds struct {
	CacheTTL          time.Duration
	MaxCacheSize      int
	CostWarningEUR    float64
	MaxContextTokens  int
	RequestTimeout    time.Duration
}

// RouterWeights mirrors internal/router.Weights' fields before validation;
// kept here as plain data so config loading has no dependency on the
// router package.
type RouterWeights struct {
	CostWeight         float64
	LatencyWeight      float64
	AvailabilityWeight float64
	FallbackEnabled    bool
}

// CircuitBreaker mirrors internal/breaker.Config's fields as plain data.
type CircuitBreaker struct {
	FailureThreshold      int
	BaseReset             time.Duration
	HalfOpenMaxCalls      int
	FailureRateThreshold  float64
	SlowCallThreshold     time.Duration
	SlowCallRateThreshold float64
	WindowSize            int
}

// Config holds all application configuration.
type Config struct {
	// Operational settings.
	LogLevel   string
	DataDir    string // directory holding the sqlite store
	ForceMemoryStore bool

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Routing and storage configuration.
	Backends        map[string]BackendConfig
	Features        Features
	Thresholds      Thresholds
	Router          RouterWeights
	CircuitBreaker  CircuitBreaker
}

// Load reads configuration from environment variables with sensible
// defaults. Returns an error if any environment variable contains an
// unparseable value. Missing variables use sensible defaults; only
// malformed values are rejected.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		LogLevel:     envStr("CLAUDETTE_LOG_LEVEL", "info"),
		DataDir:      envStr("CLAUDETTE_DATA_DIR", "."),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "claudette"),
	}

	cfg.ForceMemoryStore, errs = collectBool(errs, "CLAUDETTE_FORCE_MEMORY_STORE", false)
	cfg.OTELInsecure, errs = collectBool(errs, "OTEL_EXPORTER_OTLP_INSECURE", false)

	cfg.Features = Features{
		Caching:               true,
		CostOptimization:      true,
		PerformanceMonitoring: true,
		SmartRouting:          true,
	}
	cfg.Features.Caching, errs = collectBool(errs, "CLAUDETTE_FEATURE_CACHING", cfg.Features.Caching)
	cfg.Features.CostOptimization, errs = collectBool(errs, "CLAUDETTE_FEATURE_COST_OPTIMIZATION", cfg.Features.CostOptimization)
	cfg.Features.PerformanceMonitoring, errs = collectBool(errs, "CLAUDETTE_FEATURE_PERFORMANCE_MONITORING", cfg.Features.PerformanceMonitoring)
	cfg.Features.SmartRouting, errs = collectBool(errs, "CLAUDETTE_FEATURE_SMART_ROUTING", cfg.Features.SmartRouting)

	cfg.Thresholds.CacheTTL, errs = collectDuration(errs, "CLAUDETTE_CACHE_TTL_S", time.Hour, time.Second)
	cfg.Thresholds.MaxCacheSize, errs = collectInt(errs, "CLAUDETTE_MAX_CACHE_SIZE", 10000)
	cfg.Thresholds.CostWarningEUR, errs = collectFloat(errs, "CLAUDETTE_COST_WARNING_EUR", 1.0)
	cfg.Thresholds.MaxContextTokens, errs = collectInt(errs, "CLAUDETTE_MAX_CONTEXT_TOKENS", 128000)
	cfg.Thresholds.RequestTimeout, errs = collectDuration(errs, "CLAUDETTE_REQUEST_TIMEOUT_MS", 45*time.Second, time.Millisecond)

	cfg.Router.CostWeight, errs = collectFloat(errs, "CLAUDETTE_ROUTER_COST_WEIGHT", 0.4)
	cfg.Router.LatencyWeight, errs = collectFloat(errs, "CLAUDETTE_ROUTER_LATENCY_WEIGHT", 0.4)
	cfg.Router.AvailabilityWeight, errs = collectFloat(errs, "CLAUDETTE_ROUTER_AVAILABILITY_WEIGHT", 0.2)
	cfg.Router.FallbackEnabled, errs = collectBool(errs, "CLAUDETTE_ROUTER_FALLBACK_ENABLED", true)

	cfg.CircuitBreaker.FailureThreshold, errs = collectInt(errs, "CLAUDETTE_BREAKER_FAILURE_THRESHOLD", 5)
	cfg.CircuitBreaker.BaseReset, errs = collectDuration(errs, "CLAUDETTE_BREAKER_BASE_RESET_MS", 30*time.Second, time.Millisecond)
	cfg.CircuitBreaker.HalfOpenMaxCalls, errs = collectInt(errs, "CLAUDETTE_BREAKER_HALF_OPEN_MAX_CALLS", 3)
	cfg.CircuitBreaker.FailureRateThreshold, errs = collectFloat(errs, "CLAUDETTE_BREAKER_FAILURE_RATE_THRESHOLD", 50)
	cfg.CircuitBreaker.SlowCallThreshold, errs = collectDuration(errs, "CLAUDETTE_BREAKER_SLOW_CALL_THRESHOLD_MS", 15*time.Second, time.Millisecond)
	cfg.CircuitBreaker.SlowCallRateThreshold, errs = collectFloat(errs, "CLAUDETTE_BREAKER_SLOW_CALL_RATE_THRESHOLD", 80)
	cfg.CircuitBreaker.WindowSize, errs = collectInt(errs, "CLAUDETTE_BREAKER_WINDOW_SIZE", 20)

	cfg.Backends = backendsFromEnv()

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return Config{}, fmt.Errorf("config: invalid environment variables:\n  %s", strings.Join(msgs, "\n  "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// backendsFromEnv builds the default backend table. Per-backend API keys
// are referenced by env var name only (api_key_ref) and are not read here;
// the root package's buildRegistry looks the named variable up when it
// constructs each backend adapter.
func backendsFromEnv() map[string]BackendConfig {
	return map[string]BackendConfig{
		"openai": {
			Enabled: envBoolRaw("CLAUDETTE_OPENAI_ENABLED", true), Priority: 10,
			CostPer1KTokens: 0.002, Model: envStr("CLAUDETTE_OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: envStr("CLAUDETTE_OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKeyRef: "OPENAI_API_KEY",
		},
		"anthropic": {
			Enabled: envBoolRaw("CLAUDETTE_ANTHROPIC_ENABLED", true), Priority: 10,
			CostPer1KTokens: 0.003, Model: envStr("CLAUDETTE_ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
			BaseURL: envStr("CLAUDETTE_ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
			APIKeyRef: "ANTHROPIC_API_KEY",
		},
		"qwen": {
			Enabled: envBoolRaw("CLAUDETTE_QWEN_ENABLED", false), Priority: 5,
			CostPer1KTokens: 0.0005, Model: envStr("CLAUDETTE_QWEN_MODEL", "qwen-plus"),
			BaseURL: envStr("CLAUDETTE_QWEN_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			APIKeyRef: "DASHSCOPE_API_KEY",
		},
		"ollama": {
			Enabled: envBoolRaw("CLAUDETTE_OLLAMA_ENABLED", false), Priority: 1,
			CostPer1KTokens: 0, Model: envStr("CLAUDETTE_OLLAMA_MODEL", "llama3.1"),
			BaseURL: envStr("CLAUDETTE_OLLAMA_BASE_URL", "http://localhost:11434"),
		},
	}
}

func envBoolRaw(key string, fallback bool) bool {
	v, err := envBool(key, fallback)
	if err != nil {
		return fallback
	}
	return v
}

// collectInt parses an int env var, appending any error to the accumulator.
func collectInt(errs []error, key string, fallback int) (int, []error) {
	v, err := envInt(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectBool parses a bool env var, appending any error to the accumulator.
func collectBool(errs []error, key string, fallback bool) (bool, []error) {
	v, err := envBool(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectFloat parses a float env var, appending any error to the accumulator.
func collectFloat(errs []error, key string, fallback float64) (float64, []error) {
	v, err := envFloat(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectDuration parses a plain-integer env var (e.g. a "_MS" or "_S"
// suffixed key) as a count of unit, appending any error to the accumulator.
func collectDuration(errs []error, key string, fallback, unit time.Duration) (time.Duration, []error) {
	n, err := envInt(key, int(fallback/unit))
	if err != nil {
		errs = append(errs, err)
	}
	return time.Duration(n) * unit, errs
}

// Validate checks that configuration is internally sane.
func (c Config) Validate() error {
	var errs []error

	if c.Thresholds.MaxCacheSize <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_MAX_CACHE_SIZE must be positive"))
	}
	if c.Thresholds.CacheTTL <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_CACHE_TTL_S must be positive"))
	}
	if c.Thresholds.RequestTimeout <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_REQUEST_TIMEOUT_MS must be positive"))
	}
	if c.Thresholds.MaxContextTokens <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_MAX_CONTEXT_TOKENS must be positive"))
	}
	if c.Router.CostWeight < 0 || c.Router.LatencyWeight < 0 || c.Router.AvailabilityWeight < 0 {
		errs = append(errs, errors.New("config: router weights must be non-negative"))
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_BREAKER_FAILURE_THRESHOLD must be positive"))
	}
	if c.CircuitBreaker.BaseReset <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_BREAKER_BASE_RESET_MS must be positive"))
	}
	if c.CircuitBreaker.WindowSize <= 0 {
		errs = append(errs, errors.New("config: CLAUDETTE_BREAKER_WINDOW_SIZE must be positive"))
	}
	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("config: at least one backend must be configured"))
	}

	return errors.Join(errs...)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

