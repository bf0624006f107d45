package router

import (
	"sync"

	"github.com/claudette-ai/claudette/internal/backend"
	"github.com/claudette-ai/claudette/internal/breaker"
	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/observability"
)

// entry bundles one backend with the breaker and rolling metrics the
// router owns for it. Backend descriptors belong exclusively to this
// registry; circuit breakers and rolling metrics are exclusively the
// router's, never shared or mutated from the scorer or health poller
// directly.
type entry struct {
	backend backend.Backend
	breaker *breaker.Breaker
	mu      sync.Mutex
	metrics model.RollingMetrics
}

// Registry is the router's owned backend registry: a clear init-time
// registration phase, no further mutation during request handling. The
// health poller and scorer borrow from it without taking ownership.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // registration order, for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a backend to the registry. Must only be called during
// init; the router does not support runtime registration or removal.
func (r *Registry) Register(b backend.Backend, breakerCfg breaker.Config, sink observability.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := b.Name()
	if _, exists := r.entries[name]; exists {
		return
	}
	r.entries[name] = &entry{
		backend: b,
		breaker: breaker.New(name, breakerCfg, sink),
		metrics: model.RollingMetrics{
			AvgLatencyMS: b.Descriptor().Capability.AvgLatency * 1000,
			SuccessRate:  b.Descriptor().Capability.Reliability,
			QualityScore: b.Descriptor().Capability.Quality,
		},
	}
	r.order = append(r.order, name)
}

// Names returns registered backend names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the backend, breaker, and current metrics snapshot for name.
func (r *Registry) Get(name string) (backend.Backend, *breaker.Breaker, model.RollingMetrics, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, model.RollingMetrics{}, false
	}
	e.mu.Lock()
	m := e.metrics
	e.mu.Unlock()
	return e.backend, e.breaker, m, true
}

// UpdateMetrics applies an EMA update to the named backend's rolling
// metrics under that backend's own critical section.
func (r *Registry) UpdateMetrics(name string, latencyMS float64, success bool, quality float64) {
	const alpha = 0.1
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.AvgLatencyMS = e.metrics.AvgLatencyMS*(1-alpha) + latencyMS*alpha
	delta := -alpha
	if success {
		delta = alpha
	}
	e.metrics.SuccessRate = model.Clamp01(e.metrics.SuccessRate + delta)
	e.metrics.QualityScore = model.Clamp01(e.metrics.QualityScore*(1-alpha) + quality*alpha)
}

// Breakers returns every registered breaker, for use by status reporting.
func (r *Registry) Breakers() map[string]*breaker.Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*breaker.Breaker, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.breaker
	}
	return out
}
