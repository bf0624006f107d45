package claudette_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudette-ai/claudette"
)

// disableAllBackends prevents New from dialing real upstream providers
// during tests; every adapter constructs fine with no credentials. No test
// may send to a real provider: a test that exercises Send points the
// adapter's base URL at a local httptest server.
func disableAllBackends(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLAUDETTE_OPENAI_ENABLED", "CLAUDETTE_ANTHROPIC_ENABLED",
		"CLAUDETTE_QWEN_ENABLED", "CLAUDETTE_OLLAMA_ENABLED",
	} {
		t.Setenv(key, "false")
	}
}

func newTestClaudette(t *testing.T) *claudette.Claudette {
	t.Helper()
	disableAllBackends(t)
	c, err := claudette.New(claudette.WithForceMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup(context.Background()) })
	return c
}

func TestOptimizeRejectsEmptyPrompt(t *testing.T) {
	c := newTestClaudette(t)
	_, err := c.Optimize(context.Background(), "", nil, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

func TestOptimizeRejectsOversizePrompt(t *testing.T) {
	c := newTestClaudette(t)
	huge := make([]byte, 2<<20)
	_, err := c.Optimize(context.Background(), string(huge), nil, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

func TestOptimizeNoBackendsAvailable(t *testing.T) {
	c := newTestClaudette(t)
	_, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrNoBackendsAvailable, cerr.Kind)
}

func TestOptimizeForcedUnknownBackendIsInvalidInput(t *testing.T) {
	c := newTestClaudette(t)
	_, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{ForcedBackend: "nonexistent"})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

func TestGetStatusWithNoBackends(t *testing.T) {
	c := newTestClaudette(t)
	status := c.GetStatus()
	assert.Empty(t, status.Backends)
	assert.Equal(t, int64(0), status.Cache.EntryCount)
}

func TestGetConfigReflectsOverrides(t *testing.T) {
	c := newTestClaudette(t)
	cfg := c.GetConfig()
	assert.True(t, cfg.ForceMemoryStore)
	for _, bc := range cfg.Backends {
		assert.False(t, bc.Enabled)
	}
}

func TestOptimizeTooManyFiles(t *testing.T) {
	c := newTestClaudette(t)
	files := make([]string, 101)
	for i := range files {
		files[i] = "file.txt"
	}
	_, err := c.Optimize(context.Background(), "hello", files, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

func TestOptimizeRejectsTraversalPath(t *testing.T) {
	c := newTestClaudette(t)
	_, err := c.Optimize(context.Background(), "hello", []string{"../secret.txt"}, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

func TestOptimizeRejectsOutOfRangeTemperature(t *testing.T) {
	c := newTestClaudette(t)
	for _, temp := range []float64{-0.1, 1.5, 5} {
		temp := temp
		_, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{Temperature: &temp})
		require.Error(t, err)
		cerr, ok := err.(*claudette.Error)
		require.True(t, ok)
		assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
	}
}

func TestOptimizeRejectsHomePath(t *testing.T) {
	c := newTestClaudette(t)
	_, err := c.Optimize(context.Background(), "hello", []string{"~/secret.txt"}, claudette.Options{})
	require.Error(t, err)
	cerr, ok := err.(*claudette.Error)
	require.True(t, ok)
	assert.Equal(t, claudette.ErrInvalidInput, cerr.Kind)
}

// fakeOpenAIServer serves a fixed chat-completions response so the full
// pipeline (fingerprint, cache, router, ledger) can run end-to-end against
// the real openai adapter with no upstream dependency.
func fakeOpenAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}],"usage":{"prompt_tokens":10,"completion_tokens":20}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOptimizeCacheHitRoundTrip(t *testing.T) {
	srv := fakeOpenAIServer(t)

	disableAllBackends(t)
	t.Setenv("CLAUDETTE_OPENAI_ENABLED", "true")
	t.Setenv("CLAUDETTE_OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	c, err := claudette.New(claudette.WithForceMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup(context.Background()) })

	first, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", first.Content)
	assert.Equal(t, "openai", first.BackendUsed)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 10, first.TokensInput)
	assert.Equal(t, 20, first.TokensOutput)
	assert.GreaterOrEqual(t, first.CostEUR, 0.0)

	second, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "ok", second.Content)
	assert.Equal(t, "openai", second.BackendUsed)
	assert.Equal(t, first.TokensInput, second.TokensInput)
	assert.Equal(t, first.TokensOutput, second.TokensOutput)
	assert.Equal(t, first.CostEUR, second.CostEUR)
	assert.Less(t, second.LatencyMS, int64(1000), "a cache hit must answer without an upstream round-trip")

	status := c.GetStatus()
	assert.EqualValues(t, 2, status.Ledger.Requests)
	assert.EqualValues(t, 1, status.Ledger.CacheHits)
	require.NotEmpty(t, status.Daily, "daily usage rollup should cover today's requests")
	assert.Equal(t, "openai", status.Daily[0].Backend)
}

func TestOptimizeBypassCacheAlwaysSends(t *testing.T) {
	srv := fakeOpenAIServer(t)

	disableAllBackends(t)
	t.Setenv("CLAUDETTE_OPENAI_ENABLED", "true")
	t.Setenv("CLAUDETTE_OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	c, err := claudette.New(claudette.WithForceMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup(context.Background()) })

	for i := 0; i < 2; i++ {
		resp, err := c.Optimize(context.Background(), "hello", nil, claudette.Options{BypassCache: true})
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	}
}

func TestMain(m *testing.M) {
	// Keep default config's API key env vars unset so no real backend is
	// ever mistakenly considered configured if a future test re-enables one.
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DASHSCOPE_API_KEY"} {
		_ = os.Unsetenv(key)
	}
	os.Exit(m.Run())
}
