package claudette

import (
	"log/slog"

	"github.com/claudette-ai/claudette/internal/observability"
)

// Option configures a Claudette instance at construction time.
type Option func(*resolvedOptions)

// resolvedOptions holds every extension point after defaults and Option
// overrides are applied. Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger       *slog.Logger
	sink         observability.Sink
	dataDir      string
	version      string
	forceMemory  bool
	redisAddr    string
	enableMCP    bool
}

// WithLogger sets the structured logger used for startup/shutdown messages
// and, absent an explicit WithEventSink, for routing/breaker/health events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithEventSink replaces the observability sink the router, breaker, and
// health poller emit structured events to. Defaults to a slog-backed sink
// using WithLogger's logger (or slog.Default()).
func WithEventSink(sink observability.Sink) Option {
	return func(o *resolvedOptions) { o.sink = sink }
}

// WithDataDir overrides the directory holding the sqlite store
// (CLAUDETTE_DATA_DIR env var).
func WithDataDir(dir string) Option {
	return func(o *resolvedOptions) { o.dataDir = dir }
}

// WithVersion sets the version string reported as the OpenTelemetry service
// version and by the MCP server.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithForceMemoryStore forces the in-memory storage fallback regardless of
// CLAUDETTE_FORCE_MEMORY_STORE, for test environments embedding Claudette
// without a filesystem.
func WithForceMemoryStore() Option {
	return func(o *resolvedOptions) { o.forceMemory = true }
}

// WithRedisCache points the response cache at a shared Redis instance
// instead of the default sqlite-backed one, for deployments running
// multiple Claudette instances against one cache.
func WithRedisCache(addr string) Option {
	return func(o *resolvedOptions) { o.redisAddr = addr }
}

// WithMCP builds an MCP server (claudette_optimize tool, claudette://status
// resource) alongside the instance, retrievable via Claudette.MCPServer.
// Off by default; mounting it onto a transport is the caller's choice.
func WithMCP() Option {
	return func(o *resolvedOptions) { o.enableMCP = true }
}
