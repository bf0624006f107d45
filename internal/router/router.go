// Package router orchestrates candidate selection, circuit-breaker gated
// execution, and sequential fallback across backends.
package router

import (
	"context"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/observability"
	"github.com/claudette-ai/claudette/internal/scorer"
)

// AvailabilityChecker is the read side of the health poller's availability
// cache. The router only consults it to prune candidates cheaply; results
// are non-authoritative.
type AvailabilityChecker interface {
	// Healthy reports the cached health of name and whether an entry
	// exists at all. An absent entry is treated as healthy (optimistic
	// default before the first poll completes).
	Healthy(name string) (healthy bool, known bool)
}

// alwaysHealthy is used when no availability checker is wired (e.g. tests),
// so every registered backend is eligible by default.
type alwaysHealthy struct{}

func (alwaysHealthy) Healthy(string) (bool, bool) { return true, false }

// maxAttempts bounds sequential fallback per user request: at most one
// attempt per distinct backend, across at most three distinct backends.
const maxAttempts = 3

// simpleRequestBaseTimeout is the configured_simple_request_base used to
// cap a single Backend.send deadline.
const simpleRequestBaseTimeout = 30 * time.Second

// MetricsRecorder persists per-backend rolling metrics. The router feeds
// it the same outcome record that drives the in-memory registry update, so
// the stored and in-memory EMAs can't diverge.
type MetricsRecorder interface {
	UpdateBackendMetrics(ctx context.Context, backend string, latencyMS float64, success bool, costEUR float64) error
}

// Router ties a Registry together with an availability checker, scoring
// weights, a metrics recorder, and an observability sink to implement
// Route.
type Router struct {
	registry     *Registry
	availability AvailabilityChecker
	weights      Weights
	sink         observability.Sink
	recorder     MetricsRecorder
}

// New builds a Router. availability may be nil (defaults to always-healthy,
// useful for tests and for the "raw" bypass-optimization mode's single
// attempt path); recorder may be nil to skip metric persistence.
func New(registry *Registry, availability AvailabilityChecker, weights Weights, sink observability.Sink, recorder MetricsRecorder) *Router {
	if availability == nil {
		availability = alwaysHealthy{}
	}
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Router{registry: registry, availability: availability, weights: weights, sink: sink, recorder: recorder}
}

// UpdateWeights atomically replaces the router's scoring weight blend.
// Concurrent Route calls in flight keep using whichever value they already
// read; there's no partial-update window because Weights is a plain value.
func (rt *Router) UpdateWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	rt.weights = w
	return nil
}

// RouteRaw implements the "raw" / bypass-optimization mode: a single
// attempt to a default-ordered backend, with no scorer ranking and no
// fallback. The circuit breaker still gates the attempt; bypassing
// optimization doesn't mean bypassing the safety rail that stops calls
// into a backend mid-failure-storm.
func (rt *Router) RouteRaw(ctx context.Context, req model.Request) (model.Response, error) {
	candidates, breakerExcluded, err := rt.candidateSet(req)
	if err != nil {
		return model.Response{}, err
	}
	if len(candidates) == 0 {
		if len(breakerExcluded) > 0 {
			return model.Response{}, model.NewAllBackendsFailed(breakerExcluded)
		}
		return model.Response{}, model.NewError(model.ErrNoBackendsAvailable, "", "no candidate backends available")
	}

	name := candidates[0]
	resp, attemptErr := rt.attempt(ctx, req, name)
	if attemptErr == nil {
		return resp, nil
	}

	var kind model.ErrorKind
	var msg string
	if cerr, ok := attemptErr.(*model.Error); ok {
		kind = cerr.Kind
		msg = cerr.Message
	} else {
		kind = model.ErrFatal
		msg = attemptErr.Error()
	}
	return model.Response{}, model.NewAllBackendsFailed([]model.AttemptFailure{{Backend: name, Kind: kind, Message: msg}})
}

// Route builds the candidate set, scores it, executes the top candidate
// under its circuit breaker, and falls back sequentially on retryable
// failure.
func (rt *Router) Route(ctx context.Context, req model.Request) (model.Response, error) {
	analysis := scorer.Analyze(req)

	candidates, breakerExcluded, err := rt.candidateSet(req)
	if err != nil {
		return model.Response{}, err
	}
	if len(candidates) == 0 {
		// An Open-breaker backend is never selected for a new request. But
		// the request shouldn't report a bare "no backends" when backends
		// exist and are merely cooling down; surface that as
		// AllBackendsFailed carrying CircuitOpen causes instead.
		if len(breakerExcluded) > 0 {
			return model.Response{}, model.NewAllBackendsFailed(breakerExcluded)
		}
		return model.Response{}, model.NewError(model.ErrNoBackendsAvailable, "", "no candidate backends available")
	}

	excluded := make(map[string]bool)
	var causes []model.AttemptFailure

	attempts := maxAttempts
	if !rt.weights.FallbackEnabled {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		remaining := filterOut(candidates, excluded)
		if len(remaining) == 0 {
			break
		}

		scored := scorer.RankWithBias(toScorerCandidates(remaining, rt.registry), analysis, scorer.RouterBias{
			Cost:         rt.weights.CostWeight,
			Latency:      rt.weights.LatencyWeight,
			Availability: rt.weights.AvailabilityWeight,
		})
		if len(scored) == 0 {
			break
		}
		name := scored[0].Candidate.Name
		rt.sink.Emit(observability.Event{
			Kind:    observability.EventBackendSelected,
			Backend: name,
			Message: "backend selected",
			Fields: map[string]any{
				"task":  string(analysis.TaskType),
				"lang":  analysis.Language,
				"score": scored[0].Score,
			},
		})

		resp, attemptErr := rt.attempt(ctx, req, name)
		if attemptErr == nil {
			return resp, nil
		}

		var kind model.ErrorKind
		var msg string
		if cerr, ok := attemptErr.(*model.Error); ok {
			kind = cerr.Kind
			msg = cerr.Message
		} else {
			kind = model.ErrFatal
			msg = attemptErr.Error()
		}
		causes = append(causes, model.AttemptFailure{Backend: name, Kind: kind, Message: msg})

		if !kind.Retryable() {
			return model.Response{}, model.NewAllBackendsFailed(causes)
		}
		excluded[name] = true
	}

	return model.Response{}, model.NewAllBackendsFailed(causes)
}

// candidateSet returns all registered backends minus those whose breaker
// isn't ready (Open with the reset timer still running) minus
// cached-unhealthy, or the single forced backend. An Open breaker past its
// reset delay stays a candidate so the subsequent attempt can issue the
// HalfOpen probe. The second return value carries a CircuitOpen
// attempt-failure for each breaker-excluded backend, so the caller can
// distinguish "nothing registered" from "everything is cooling down".
func (rt *Router) candidateSet(req model.Request) ([]string, []model.AttemptFailure, error) {
	forced := req.Options.ForcedBackend
	if forced != "" {
		_, br, _, ok := rt.registry.Get(forced)
		if !ok {
			return nil, nil, model.NewError(model.ErrInvalidInput, forced, "forced_backend is not registered")
		}
		if healthy, known := rt.availability.Healthy(forced); known && !healthy {
			return nil, nil, model.NewError(model.ErrInvalidInput, forced, "forced_backend is not available")
		}
		if !br.Ready(time.Now()) {
			return nil, []model.AttemptFailure{{Backend: forced, Kind: model.ErrCircuitOpen, Message: "circuit open"}}, nil
		}
		return []string{forced}, nil, nil
	}

	var out []string
	var breakerExcluded []model.AttemptFailure
	for _, name := range rt.registry.Names() {
		_, br, _, ok := rt.registry.Get(name)
		if !ok {
			continue
		}
		if !br.Ready(time.Now()) {
			breakerExcluded = append(breakerExcluded, model.AttemptFailure{Backend: name, Kind: model.ErrCircuitOpen, Message: "circuit open"})
			continue
		}
		if healthy, known := rt.availability.Healthy(name); known && !healthy {
			continue
		}
		out = append(out, name)
	}
	return out, breakerExcluded, nil
}

func filterOut(candidates []string, excluded map[string]bool) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !excluded[c] {
			out = append(out, c)
		}
	}
	return out
}

func toScorerCandidates(names []string, registry *Registry) []scorer.Candidate {
	out := make([]scorer.Candidate, 0, len(names))
	for _, name := range names {
		b, _, metrics, ok := registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, scorer.Candidate{Name: name, Profile: b.Descriptor().Capability, Metrics: metrics})
	}
	return out
}

// attempt enters the circuit breaker, calls Backend.Send, and records the
// outcome against both the breaker and the rolling metrics.
func (rt *Router) attempt(ctx context.Context, req model.Request, name string) (model.Response, error) {
	b, br, _, ok := rt.registry.Get(name)
	if !ok {
		return model.Response{}, model.NewError(model.ErrFatal, name, "backend vanished from registry mid-route")
	}

	now := time.Now()
	if !br.Allow(now) {
		return model.Response{}, model.NewError(model.ErrCircuitOpen, name, "circuit open")
	}

	deadline := now.Add(simpleRequestBaseTimeout)
	if reqDeadline := req.EffectiveTimeout(45 * time.Second); reqDeadline < simpleRequestBaseTimeout {
		deadline = now.Add(reqDeadline)
	}

	rt.sink.Emit(observability.Event{Kind: observability.EventBackendAttempt, Backend: name, Message: "attempting backend"})

	resp, err := b.Send(ctx, req, deadline)
	durationMS := time.Since(now).Milliseconds()

	if err != nil {
		br.RecordFailure(durationMS, time.Now())
		rt.registry.UpdateMetrics(name, float64(durationMS), false, 0)
		rt.persistMetrics(ctx, name, float64(durationMS), false, 0)
		return model.Response{}, err
	}

	quality := estimateQuality(resp)
	br.RecordSuccess(durationMS, time.Now())
	rt.registry.UpdateMetrics(name, float64(resp.LatencyMS), true, quality)
	rt.persistMetrics(ctx, name, float64(resp.LatencyMS), true, resp.CostEUR)

	return resp, nil
}

// persistMetrics writes the outcome to the stored per-backend EMA.
// Best-effort: a failing ledger degrades persistence, never the request.
func (rt *Router) persistMetrics(ctx context.Context, name string, latencyMS float64, success bool, costEUR float64) {
	if rt.recorder == nil {
		return
	}
	if err := rt.recorder.UpdateBackendMetrics(ctx, name, latencyMS, success, costEUR); err != nil {
		rt.sink.Emit(observability.Event{
			Kind:    observability.EventBackendAttempt,
			Backend: name,
			Message: "persisting backend metrics failed",
			Fields:  map[string]any{"error": err.Error()},
		})
	}
}

// estimateQuality scores a successful response for the rolling metrics:
// base 0.7; content-length bonus; token-ratio bonus; latency bonus/malus;
// cheap-cost bonus. Clamped to [0.1, 1.0].
func estimateQuality(resp model.Response) float64 {
	q := 0.7

	n := len(resp.Content)
	if n >= 50 && n < 2000 {
		q += 0.1
	} else {
		q += 0.05
	}

	if resp.TokensInput > 0 {
		ratio := float64(resp.TokensOutput) / float64(resp.TokensInput)
		if ratio >= 0.5 && ratio < 3.0 {
			q += 0.1
		}
	}

	switch {
	case resp.LatencyMS <= 1000:
		q += 0.05
	case resp.LatencyMS >= 5000:
		q -= 0.05
	}

	if resp.CostEUR < 0.01 {
		q += 0.05
	}

	if q < 0.1 {
		q = 0.1
	}
	if q > 1.0 {
		q = 1.0
	}
	return q
}
