// Package claudette is the public API for embedding Claudette's AI-request
// middleware. It constructs and wires the dispatch pipeline (task analysis,
// scoring, circuit-breaker-gated send, sequential fallback, persistent
// caching, ledger accounting) without requiring callers to reach into
// internal/*.
//
// The import graph enforces a no-cycle rule: claudette (root) imports
// internal/*, internal/* never imports claudette.
//
//	c, err := claudette.New(claudette.WithDataDir("./data"))
//	if err != nil { ... }
//	if err := c.Initialize(ctx); err != nil { ... }
//	defer c.Cleanup(ctx)
//	resp, err := c.Optimize(ctx, "hello", nil, claudette.Options{})
package claudette

import (
	"github.com/claudette-ai/claudette/internal/config"
	"github.com/claudette-ai/claudette/internal/model"
)

// Request, response, and status types are re-exported from internal/model
// rather than duplicated behind converters: every field here is already
// caller-facing data (no org-scoped or access-controlled internal state to
// strip), so a parallel struct would just be a second name for the same
// shape.

// Options carries per-request routing preferences. See internal/model.Options.
type Options = model.Options

// Response is Claudette's uniform answer, annotated with cost, latency,
// token counts, and cache provenance.
type Response = model.Response

// StatusReport is returned by GetStatus: per-backend health and routing
// stats, plus cache occupancy.
type StatusReport = model.StatusReport

// BackendStatus summarizes one registered backend's health and metrics.
type BackendStatus = model.BackendStatus

// LedgerSummary rolls up the trailing 24 hours of quota activity.
type LedgerSummary = model.LedgerSummary

// Aggregate is one row of a daily or hourly usage rollup.
type Aggregate = model.Aggregate

// Error is Claudette's single error type; see internal/model.Error for the
// Kind taxonomy and Retryable().
type Error = model.Error

// ErrorKind is the stable, user-facing error taxonomy.
type ErrorKind = model.ErrorKind

// ConfigView is the effective configuration Claudette was constructed with,
// returned by GetConfig. Backend entries carry api_key_ref (an env var
// name), never the credential itself.
type ConfigView = config.Config

// Error kind re-exports for callers that want to switch on error.Kind
// without importing internal/model directly.
const (
	ErrInvalidInput        = model.ErrInvalidInput
	ErrNoBackendsAvailable = model.ErrNoBackendsAvailable
	ErrCircuitOpen         = model.ErrCircuitOpen
	ErrRateLimit           = model.ErrRateLimit
	ErrTimeout             = model.ErrTimeout
	ErrTransient           = model.ErrTransient
	ErrAuth                = model.ErrAuth
	ErrContextLength       = model.ErrContextLength
	ErrFatal               = model.ErrFatal
	ErrAllBackendsFailed   = model.ErrAllBackendsFailed
	ErrCacheUnavailable    = model.ErrCacheUnavailable
	ErrLedgerUnavailable   = model.ErrLedgerUnavailable
)
