// Package observability provides the structured event sink the router and
// breaker write to. It exists so that masking of sensitive fields (API keys,
// authorization headers) happens at a single layer rather than at every call
// site that might log something backend-related.
package observability

import (
	"log/slog"
	"strings"
)

// EventKind names the category of a structured event.
type EventKind string

const (
	EventBreakerStateChange EventKind = "breaker_state_change"
	EventBackendSelected    EventKind = "backend_selected"
	EventBackendAttempt     EventKind = "backend_attempt"
	EventHealthCheck        EventKind = "health_check"
	EventCacheOutcome       EventKind = "cache_outcome"
)

// Event is one structured record emitted by the router, breaker, or health
// poller. Fields is a free-form map; sensitive keys are masked by Sink
// before being logged.
type Event struct {
	Kind    EventKind
	Backend string
	Message string
	Fields  map[string]any
}

// Sink receives structured events. The router, breaker, and health poller
// hold one of these rather than a *slog.Logger directly, so call sites
// can't accidentally bypass masking.
type Sink interface {
	Emit(e Event)
}

// sensitiveKeys lists field names masked before logging, matched
// case-insensitively and by substring (so "api_key", "openai_api_key",
// "authorization_header" are all caught).
var sensitiveKeys = []string{"api_key", "apikey", "authorization", "auth_header", "token", "secret", "password"}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SlogSink emits events through log/slog, masking sensitive fields.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a Sink backed by logger. A nil logger falls back to
// slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(e Event) {
	attrs := make([]any, 0, 4+2*len(e.Fields))
	attrs = append(attrs, "kind", string(e.Kind))
	if e.Backend != "" {
		attrs = append(attrs, "backend", e.Backend)
	}
	for k, v := range e.Fields {
		if isSensitive(k) {
			v = "***"
		}
		attrs = append(attrs, k, v)
	}
	s.logger.Info(e.Message, attrs...)
}

// NopSink discards every event; used when the caller doesn't want
// observability wiring (e.g. most unit tests).
type NopSink struct{}

func (NopSink) Emit(Event) {}
