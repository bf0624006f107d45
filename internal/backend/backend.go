// Package backend defines the abstract Backend capability and one
// HTTP-based implementation per upstream provider family: OpenAI-style
// chat completions, Anthropic messages, Qwen-compatible endpoints, and
// local Ollama.
package backend

import (
	"context"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
)

// Backend is the capability every provider adapter exposes. The router
// never depends on a concrete provider type, only on this interface.
type Backend interface {
	// Name returns a stable identifier unique within the process.
	Name() string
	// IsAvailable must return within deadline; on timeout the caller treats
	// the backend as unhealthy.
	IsAvailable(ctx context.Context, deadline time.Time) bool
	// EstimateCost is a pure function of configuration; no I/O.
	EstimateCost(tokenCount int) float64
	// LatencyScore reports the expected latency in seconds. Every adapter
	// returns the static AvgLatency baseline from its capability profile;
	// observed latencies do not change it.
	LatencyScore() float64
	// Send makes exactly one upstream call attempt and must honor deadline.
	Send(ctx context.Context, req model.Request, deadline time.Time) (model.Response, error)
	// Descriptor returns the static configuration this backend was built from.
	Descriptor() model.BackendDescriptor
}

// estimateTokensFromChars is the fallback token estimate (char-length / 4)
// used when a provider response doesn't report exact counts.
func estimateTokensFromChars(n int) int {
	return (n + 3) / 4
}
