package claudette

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/claudette-ai/claudette/internal/backend"
	"github.com/claudette-ai/claudette/internal/breaker"
	"github.com/claudette-ai/claudette/internal/cache"
	"github.com/claudette-ai/claudette/internal/config"
	"github.com/claudette-ai/claudette/internal/fingerprint"
	"github.com/claudette-ai/claudette/internal/health"
	"github.com/claudette-ai/claudette/internal/ledger"
	"github.com/claudette-ai/claudette/internal/mcpsrv"
	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/observability"
	"github.com/claudette-ai/claudette/internal/router"
	"github.com/claudette-ai/claudette/internal/storage"
	"github.com/claudette-ai/claudette/internal/telemetry"
	"github.com/claudette-ai/claudette/migrations"
)

// sweepInterval is how often the background sweeper prunes expired cache
// rows and aged-out ledger entries.
const sweepInterval = 10 * time.Minute

// Claudette is the orchestrator: it owns the backend registry, router,
// cache, ledger, and health poller, and exposes Optimize as the single
// request-handling entrypoint.
type Claudette struct {
	cfg    config.Config
	logger *slog.Logger
	sink   observability.Sink

	db       *storage.DB
	registry *router.Registry
	rt       *router.Router
	cache    cache.Cache
	ledger   ledger.Store
	poller   *health.Poller
	mcp      *mcpsrv.Server

	otelShutdown    telemetry.Shutdown
	optimizeCounter otelmetric.Int64Counter

	sweepStop chan struct{}
	sweepDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// New loads configuration, opens storage, builds the backend registry, and
// wires the router/cache/ledger/health poller. It does not start any
// background goroutines; call Initialize for that.
func New(opts ...Option) (*Claudette, error) {
	resolved := &resolvedOptions{}
	for _, opt := range opts {
		opt(resolved)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("claudette: load config: %w", err)
	}
	if resolved.dataDir != "" {
		cfg.DataDir = resolved.dataDir
	}
	if resolved.forceMemory {
		cfg.ForceMemoryStore = true
	}

	logger := resolved.logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := resolved.sink
	if sink == nil {
		sink = observability.NewSlogSink(logger)
	}

	ctx := context.Background()

	db, err := openStorage(ctx, cfg, logger)
	if err != nil {
		// Storage trouble degrades persistence, never the request path:
		// the cache becomes a pass-through and the ledger a no-op.
		logger.Warn("storage unavailable, running without persistence", "error", err)
		db = nil
	}

	var store ledger.Store = ledger.NoopStore{}
	var responseCache cache.Cache
	if db != nil {
		store = ledger.NewSQLStore(db)
		responseCache = cache.NewSQLCache(db)
	}
	if resolved.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: resolved.redisAddr})
		responseCache = cache.NewRedisCache(client, logger)
	}
	if responseCache == nil {
		responseCache = cache.NewRedisCache(nil, logger) // noop cache when no storage and no redis
	}

	registry, probers, err := buildRegistry(cfg, sink)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	poller := health.New(probers, 0, 0, 0, sink)

	weights := router.Weights{
		CostWeight:         cfg.Router.CostWeight,
		LatencyWeight:      cfg.Router.LatencyWeight,
		AvailabilityWeight: cfg.Router.AvailabilityWeight,
		FallbackEnabled:    cfg.Router.FallbackEnabled,
	}
	if err := weights.Validate(); err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("claudette: %w", err)
	}
	rt := router.New(registry, poller, weights, sink, store)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, resolved.version, cfg.OTELInsecure)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("claudette: init telemetry: %w", err)
	}

	c := &Claudette{
		cfg:          cfg,
		logger:       logger,
		sink:         sink,
		db:           db,
		registry:     registry,
		rt:           rt,
		cache:        responseCache,
		ledger:       store,
		poller:       poller,
		otelShutdown: otelShutdown,
	}
	c.optimizeCounter, err = telemetry.Meter("claudette").Int64Counter("claudette.optimize.requests",
		otelmetric.WithDescription("Completed optimize calls, by backend and cache outcome"))
	if err != nil {
		logger.Warn("optimize counter unavailable", "error", err)
	}
	if resolved.enableMCP {
		c.mcp = mcpsrv.New(pipelineAdapter{c: c}, logger, resolved.version)
	}
	return c, nil
}

// openStorage opens the sqlite store (or the in-memory escape hatch) and
// runs migrations. On error the caller falls back to the NoopStore and a
// pass-through cache rather than refusing to start.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.DB, error) {
	if cfg.ForceMemoryStore {
		db, err := storage.NewMemory(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("claudette: open in-memory store: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("claudette: run migrations: %w", err)
		}
		return db, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("claudette: create data dir: %w", err)
	}
	dsn := filepath.Join(cfg.DataDir, "claudette.db")
	db, err := storage.New(ctx, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("claudette: open store: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("claudette: run migrations: %w", err)
	}
	return db, nil
}

// buildRegistry constructs every enabled backend from cfg.Backends, using
// the config map key itself as the backend kind (config.Load's
// backendsFromEnv uses exactly "openai"/"anthropic"/"qwen"/"ollama" as
// keys, so no separate Kind field is needed).
func buildRegistry(cfg config.Config, sink observability.Sink) (*router.Registry, []health.Prober, error) {
	registry := router.NewRegistry()
	breakerCfg := breaker.Config{
		FailureThreshold:      cfg.CircuitBreaker.FailureThreshold,
		BaseReset:             cfg.CircuitBreaker.BaseReset,
		HalfOpenMaxCalls:      cfg.CircuitBreaker.HalfOpenMaxCalls,
		FailureRateThreshold:  cfg.CircuitBreaker.FailureRateThreshold,
		SlowCallThreshold:     cfg.CircuitBreaker.SlowCallThreshold,
		SlowCallRateThreshold: cfg.CircuitBreaker.SlowCallRateThreshold,
		WindowSize:            cfg.CircuitBreaker.WindowSize,
	}

	var probers []health.Prober
	for kind, bc := range cfg.Backends {
		if !bc.Enabled {
			continue
		}
		descriptor := model.BackendDescriptor{
			Name:            kind,
			Model:           bc.Model,
			CostPer1KTokens: bc.CostPer1KTokens,
			BaseURL:         bc.BaseURL,
			APIKeyRef:       bc.APIKeyRef,
			Enabled:         bc.Enabled,
			Priority:        bc.Priority,
			Capability:      backend.DefaultProfile(kind),
		}
		apiKey := ""
		if bc.APIKeyRef != "" {
			apiKey = os.Getenv(bc.APIKeyRef)
		}
		b, err := backend.New(kind, descriptor, apiKey)
		if err != nil {
			return nil, nil, fmt.Errorf("claudette: build backend %s: %w", kind, err)
		}
		registry.Register(b, breakerCfg, sink)
		probers = append(probers, b)
	}
	return registry, probers, nil
}

// Initialize starts the health poller and the background sweeper. Safe to
// call at most once.
func (c *Claudette) Initialize(ctx context.Context) error {
	c.poller.Start(ctx)
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go c.sweepLoop()
	return nil
}

func (c *Claudette) sweepLoop() {
	defer close(c.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := c.cache.SweepExpired(ctx); err != nil {
				c.logger.Warn("cache sweep failed", "error", err)
			}
			if err := c.ledger.Sweep(ctx, model.DefaultRetentionPolicy()); err != nil {
				c.logger.Warn("ledger sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// Cleanup stops background goroutines and closes storage/telemetry. Safe
// to call more than once.
func (c *Claudette) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.poller.Stop()
	if c.sweepStop != nil {
		close(c.sweepStop)
		<-c.sweepDone
	}

	var firstErr error
	if c.otelShutdown != nil {
		if err := c.otelShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Optimize is the dispatch pipeline's entrypoint: validate input, read
// attached files, compute the cache fingerprint, serve a cache hit with no
// backend call, or route to a backend and persist the result.
func (c *Claudette) Optimize(ctx context.Context, prompt string, files []string, opts Options) (Response, error) {
	if len(prompt) == 0 {
		return Response{}, model.NewError(model.ErrInvalidInput, "", "prompt must not be empty")
	}
	if len(prompt) > model.MaxPromptBytes {
		return Response{}, model.NewError(model.ErrInvalidInput, "", "prompt exceeds maximum size")
	}
	if len(files) > model.MaxFiles {
		return Response{}, model.NewError(model.ErrInvalidInput, "", "too many files attached")
	}
	if opts.Temperature != nil && (*opts.Temperature < 0 || *opts.Temperature > 1) {
		return Response{}, model.NewError(model.ErrInvalidInput, "", "temperature must be within [0,1]")
	}
	for _, p := range files {
		if strings.Contains(p, "..") || strings.Contains(p, "~") {
			return Response{}, model.NewError(model.ErrInvalidInput, "", fmt.Sprintf("file path %q is not allowed", p))
		}
	}

	req := model.Request{
		Prompt:     prompt,
		Files:      files,
		Options:    opts,
		ReceivedAt: time.Now(),
		RequestID:  uuid.NewString(),
	}
	req.FileContents = readFiles(files)
	if len(files) > 0 {
		allFailed := true
		for _, fc := range req.FileContents {
			if fc.ReadError == nil {
				allFailed = false
				break
			}
		}
		if allFailed {
			return Response{}, model.NewError(model.ErrInvalidInput, "", "no attached file could be read")
		}
	}
	for _, fc := range req.FileContents {
		if fc.ReadError != nil {
			c.logger.Warn("file read failed, continuing without it", "path", fc.Path, "error", fc.ReadError)
		}
	}

	key := fingerprint.Compute(req)
	promptHash := fingerprint.PromptHash(prompt)

	if !opts.BypassCache {
		if entry, hit, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("cache lookup failed, proceeding without cache", "error", err)
		} else if hit {
			entry.Response.CacheHit = true
			entry.Response.LatencyMS = time.Since(req.ReceivedAt).Milliseconds()
			c.appendLedger(ctx, "", promptHash, req.RequestID, entry.Response, true)
			c.countOptimize(ctx, entry.Response.BackendUsed, true)
			c.sink.Emit(observability.Event{Kind: observability.EventCacheOutcome, Message: "cache hit", Fields: map[string]any{"key": key}})
			return entry.Response, nil
		}
	}

	routeCtx, span := telemetry.Tracer("claudette").Start(ctx, "claudette.route")
	var resp model.Response
	var err error
	if opts.BypassOptimization {
		resp, err = c.rt.RouteRaw(routeCtx, req)
	} else {
		resp, err = c.rt.Route(routeCtx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.End()
		return Response{}, err
	}
	span.SetAttributes(attribute.String("backend", resp.BackendUsed))
	span.End()

	resp.LatencyMS = time.Since(req.ReceivedAt).Milliseconds()
	resp.CostEUR = model.Round6(resp.CostEUR)

	if !opts.BypassCache {
		ttl := c.cfg.Thresholds.CacheTTL
		now := time.Now()
		entry := model.CacheEntry{
			Key:        key,
			PromptHash: promptHash,
			Response:   resp,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
		}
		if err := c.cache.Put(ctx, entry); err != nil {
			c.logger.Warn("cache write failed", "error", err)
		}
	}

	c.appendLedger(ctx, resp.BackendUsed, promptHash, req.RequestID, resp, false)
	c.countOptimize(ctx, resp.BackendUsed, false)

	return resp, nil
}

func (c *Claudette) countOptimize(ctx context.Context, backendName string, cacheHit bool) {
	if c.optimizeCounter == nil {
		return
	}
	c.optimizeCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("backend", backendName),
		attribute.Bool("cache_hit", cacheHit),
	))
}

func (c *Claudette) appendLedger(ctx context.Context, backendName, promptHash, requestID string, resp model.Response, cacheHit bool) {
	name := backendName
	if name == "" {
		name = resp.BackendUsed
	}
	entry := model.LedgerEntry{
		RequestID:    requestID,
		Timestamp:    time.Now(),
		Backend:      name,
		PromptHash:   promptHash,
		TokensInput:  resp.TokensInput,
		TokensOutput: resp.TokensOutput,
		CostEUR:      resp.CostEUR,
		CacheHit:     cacheHit,
		LatencyMS:    resp.LatencyMS,
	}
	if err := c.ledger.AppendQuota(ctx, entry); err != nil {
		c.logger.Warn("ledger append failed", "error", err)
	}
}

// readFiles reads every attached file, recording a per-file ReadError
// instead of aborting the whole request on one bad path.
func readFiles(paths []string) []model.FileContent {
	out := make([]model.FileContent, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		out = append(out, model.FileContent{Path: p, Content: string(content), ReadError: err})
	}
	return out
}

// GetStatus reports per-backend health/breaker/metrics plus cache
// occupancy, for `claudette status` / `claudette backends`.
func (c *Claudette) GetStatus() StatusReport {
	names := c.registry.Names()
	breakers := c.registry.Breakers()
	statuses := make([]model.BackendStatus, 0, len(names))
	for _, name := range names {
		b, _, metrics, ok := c.registry.Get(name)
		if !ok {
			continue
		}
		healthy, known := c.poller.Healthy(name)
		if !known {
			healthy = true
		}
		statuses = append(statuses, model.BackendStatus{
			Name:     name,
			Healthy:  healthy,
			Breaker:  breakers[name].Snapshot(),
			Metrics:  metrics,
			Priority: b.Descriptor().Priority,
			Enabled:  b.Descriptor().Enabled,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := c.cache.Stats(ctx)
	if err != nil {
		c.logger.Warn("cache stats failed", "error", err)
	}

	var summary model.LedgerSummary
	if entries, err := c.ledger.RecentEntries(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		c.logger.Warn("ledger summary failed", "error", err)
	} else {
		for _, e := range entries {
			summary.Requests++
			if e.CacheHit {
				summary.CacheHits++
			}
			summary.TokensInput += int64(e.TokensInput)
			summary.TokensOutput += int64(e.TokensOutput)
			summary.CostEUR += e.CostEUR
		}
	}

	daily, err := c.ledger.DailyAggregates(ctx, 7)
	if err != nil {
		c.logger.Warn("daily aggregates failed", "error", err)
	}

	return model.StatusReport{Backends: statuses, Cache: stats, Ledger: summary, Daily: daily}
}

// HourlyUsage returns per-backend hourly aggregates over the trailing
// `hours` hours, for `claudette backends`.
func (c *Claudette) HourlyUsage(ctx context.Context, hours int) ([]Aggregate, error) {
	return c.ledger.HourlyAggregates(ctx, hours)
}

// GetConfig returns the effective configuration Claudette was constructed
// with. Backend entries carry api_key_ref only, never credentials.
func (c *Claudette) GetConfig() ConfigView {
	return c.cfg
}

// ClearCache empties the response cache, for `claudette cache clear`.
func (c *Claudette) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}
