package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claudette-ai/claudette"
	"github.com/claudette-ai/claudette/internal/model"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes per the error handling design: 0 success, 1 general, 2
// invalid arguments, 3 network/API, 4 timeout, 5 authentication.
const (
	exitSuccess = 0
	exitGeneral = 1
	exitUsage   = 2
	exitNetwork = 3
	exitTimeout = 4
	exitAuth    = 5
)

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("CLAUDETTE_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: claudette [options] <prompt> [files...]")
		return exitUsage
	}

	switch os.Args[1] {
	case "status":
		return runStatus(ctx, logger)
	case "backends":
		return runBackends(ctx, logger)
	case "cache":
		return runCache(ctx, logger, os.Args[2:])
	case "config":
		return runConfig(ctx, logger)
	case "api-keys":
		return runAPIKeys(os.Args[2:])
	case "mcp":
		return runMCP(ctx, logger)
	case "init", "setup":
		fmt.Fprintln(os.Stderr, "claudette: run the setup wizard (external tool) to configure credentials")
		return exitGeneral
	default:
		return runOptimize(ctx, logger, os.Args[1:])
	}
}

func parseLogLevel(v string) slog.Level {
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exitCodeFor maps a Claudette error to the documented exit codes.
func exitCodeFor(err error) int {
	cerr, ok := err.(*claudette.Error)
	if !ok {
		return exitGeneral
	}
	switch cerr.Kind {
	case claudette.ErrInvalidInput:
		return exitUsage
	case claudette.ErrTimeout:
		return exitTimeout
	case claudette.ErrAuth:
		return exitAuth
	case claudette.ErrRateLimit, claudette.ErrTransient, claudette.ErrNoBackendsAvailable,
		claudette.ErrCircuitOpen, claudette.ErrAllBackendsFailed, claudette.ErrContextLength:
		return exitNetwork
	default:
		return exitGeneral
	}
}

func newClaudette(logger *slog.Logger) (*claudette.Claudette, error) {
	return claudette.New(claudette.WithLogger(logger), claudette.WithVersion(version))
}

// runMCP serves Claudette's optimize tool and status resource over stdio,
// for MCP-compatible agent clients.
func runMCP(ctx context.Context, logger *slog.Logger) int {
	c, err := claudette.New(claudette.WithLogger(logger), claudette.WithVersion(version), claudette.WithMCP())
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()
	if err := c.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}

	logger.Info("claudette mcp server starting on stdio")
	if err := mcpserver.ServeStdio(c.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "claudette: mcp server: %v\n", err)
		return exitGeneral
	}
	return exitSuccess
}

func runOptimize(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("claudette", flag.ContinueOnError)
	backendFlag := fs.String("backend", "", "force a specific backend")
	fs.StringVar(backendFlag, "b", "", "force a specific backend (shorthand)")
	modelFlag := fs.String("model", "", "override the backend's default model")
	fs.StringVar(modelFlag, "m", "", "override the backend's default model (shorthand)")
	tempFlag := fs.Float64("temperature", -1, "sampling temperature [0,1]")
	fs.Float64Var(tempFlag, "t", -1, "sampling temperature [0,1] (shorthand)")
	maxTokens := fs.Int("max-tokens", 0, "maximum output tokens")
	noCache := fs.Bool("no-cache", false, "bypass the response cache")
	raw := fs.Bool("raw", false, "bypass optimization: single attempt, no scorer, no fallback")
	timeoutMS := fs.Int("timeout", 0, "per-request timeout in milliseconds")
	verbose := fs.Bool("verbose", false, "print a metadata footer to stderr")
	fs.BoolVar(verbose, "v", false, "print a metadata footer to stderr (shorthand)")
	quiet := fs.Bool("quiet", false, "suppress non-essential stderr output")
	fs.BoolVar(quiet, "q", false, "suppress non-essential stderr output (shorthand)")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *debug {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "claudette: missing prompt")
		return exitUsage
	}
	prompt := rest[0]
	files := rest[1:]

	opts := model.Options{
		ForcedBackend:      *backendFlag,
		Model:              *modelFlag,
		MaxTokens:          *maxTokens,
		BypassCache:        *noCache,
		BypassOptimization: *raw,
		TimeoutMS:          *timeoutMS,
	}
	if *tempFlag >= 0 {
		opts.Temperature = tempFlag
	}

	c, err := newClaudette(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()
	if err := c.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}

	resp, err := c.Optimize(ctx, prompt, files, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitCodeFor(err)
	}

	fmt.Println(resp.Content)
	if *verbose && !*quiet {
		fmt.Fprintf(os.Stderr, "backend=%s cost_eur=%.6f latency_ms=%d tokens_in=%d tokens_out=%d cache_hit=%t\n",
			resp.BackendUsed, resp.CostEUR, resp.LatencyMS, resp.TokensInput, resp.TokensOutput, resp.CacheHit)
	}
	return exitSuccess
}

func runStatus(ctx context.Context, logger *slog.Logger) int {
	c, err := newClaudette(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()
	if err := c.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	time.Sleep(50 * time.Millisecond) // short pause; Initialize already ran the first health poll

	status := c.GetStatus()
	fmt.Printf("cache: entries=%d bytes=%d hits=%d misses=%d evicted=%d\n",
		status.Cache.EntryCount, status.Cache.TotalBytes, status.Cache.HitCount, status.Cache.MissCount, status.Cache.EvictedCount)
	fmt.Printf("ledger: requests_24h=%d cache_hits_24h=%d tokens_in=%d tokens_out=%d cost_eur=%.6f\n",
		status.Ledger.Requests, status.Ledger.CacheHits, status.Ledger.TokensInput, status.Ledger.TokensOutput, status.Ledger.CostEUR)
	for _, b := range status.Backends {
		fmt.Printf("%-12s healthy=%-5t breaker=%-10s priority=%d enabled=%t avg_latency_ms=%.0f success_rate=%.2f quality=%.2f\n",
			b.Name, b.Healthy, b.Breaker.State, b.Priority, b.Enabled, b.Metrics.AvgLatencyMS, b.Metrics.SuccessRate, b.Metrics.QualityScore)
	}
	for _, a := range status.Daily {
		fmt.Printf("usage %s %-12s requests=%d cache_hits=%d tokens_in=%d tokens_out=%d cost_eur=%.6f avg_latency_ms=%.0f\n",
			a.Bucket.Format("2006-01-02"), a.Backend, a.Requests, a.CacheHits, a.TokensInput, a.TokensOutput, a.CostEUR, a.AvgLatencyMS)
	}
	return exitSuccess
}

func runBackends(ctx context.Context, logger *slog.Logger) int {
	c, err := newClaudette(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()
	if err := c.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	time.Sleep(50 * time.Millisecond) // short pause; Initialize already ran the first health poll

	status := c.GetStatus()
	for _, b := range status.Backends {
		fmt.Printf("%-12s healthy=%-5t breaker=%-10s priority=%d enabled=%t avg_latency_ms=%.0f success_rate=%.2f quality=%.2f\n",
			b.Name, b.Healthy, b.Breaker.State, b.Priority, b.Enabled, b.Metrics.AvgLatencyMS, b.Metrics.SuccessRate, b.Metrics.QualityScore)
	}

	hourly, err := c.HourlyUsage(ctx, 24)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: hourly usage: %v\n", err)
		return exitGeneral
	}
	for _, a := range hourly {
		fmt.Printf("usage %s %-12s requests=%d cache_hits=%d tokens_in=%d tokens_out=%d cost_eur=%.6f avg_latency_ms=%.0f\n",
			a.Bucket.Format("2006-01-02T15:04Z"), a.Backend, a.Requests, a.CacheHits, a.TokensInput, a.TokensOutput, a.CostEUR, a.AvgLatencyMS)
	}
	return exitSuccess
}

func runCache(ctx context.Context, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: claudette cache {stats|clear [-f]}")
		return exitUsage
	}

	c, err := newClaudette(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()

	switch args[0] {
	case "stats":
		status := c.GetStatus()
		fmt.Printf("entries=%d bytes=%d hits=%d misses=%d evicted=%d\n",
			status.Cache.EntryCount, status.Cache.TotalBytes, status.Cache.HitCount, status.Cache.MissCount, status.Cache.EvictedCount)
		return exitSuccess
	case "clear":
		fs := flag.NewFlagSet("cache clear", flag.ContinueOnError)
		force := fs.Bool("f", false, "skip confirmation")
		if err := fs.Parse(args[1:]); err != nil {
			return exitUsage
		}
		if !*force {
			fmt.Fprintln(os.Stderr, "claudette: pass -f to confirm clearing the cache")
			return exitUsage
		}
		if err := c.ClearCache(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
			return exitGeneral
		}
		fmt.Println("cache cleared")
		return exitSuccess
	default:
		fmt.Fprintln(os.Stderr, "usage: claudette cache {stats|clear [-f]}")
		return exitUsage
	}
}

func runConfig(ctx context.Context, logger *slog.Logger) int {
	c, err := newClaudette(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claudette: %v\n", err)
		return exitGeneral
	}
	defer func() { _ = c.Cleanup(context.Background()) }()

	cfg := c.GetConfig()
	fmt.Printf("data_dir=%s log_level=%s force_memory_store=%t\n", cfg.DataDir, cfg.LogLevel, cfg.ForceMemoryStore)
	for name, bc := range cfg.Backends {
		fmt.Printf("backend %-10s enabled=%-5t priority=%d model=%s cost_per_1k=%s api_key_ref=%s\n",
			name, bc.Enabled, bc.Priority, bc.Model, strconv.FormatFloat(bc.CostPer1KTokens, 'f', -1, 64), bc.APIKeyRef)
	}
	fmt.Printf("router: cost_weight=%.2f latency_weight=%.2f availability_weight=%.2f fallback_enabled=%t\n",
		cfg.Router.CostWeight, cfg.Router.LatencyWeight, cfg.Router.AvailabilityWeight, cfg.Router.FallbackEnabled)
	return exitSuccess
}

// runAPIKeys delegates credential maintenance to the external credential
// store; the core library only reads env-var references.
func runAPIKeys(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: claudette api-keys {add|remove|list|test|guide} <backend>")
		return exitUsage
	}
	fmt.Fprintf(os.Stderr, "claudette: api-keys %s: delegate to your credential store; claudette reads %s-style env vars directly\n",
		args[0], "BACKEND_API_KEY")
	return exitGeneral
}
