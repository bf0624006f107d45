// Package health implements the background availability poller: every ~60s
// it probes every registered backend in parallel and writes results to an
// in-memory availability cache the router consults cheaply.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/observability"
)

// Prober is the subset of Backend the poller needs: a name and an
// availability check. Kept minimal so the poller doesn't depend on the
// backend package's HTTP machinery.
type Prober interface {
	Name() string
	IsAvailable(ctx context.Context, deadline time.Time) bool
}

// Poller runs IsAvailable against every registered backend on an interval
// and exposes the resulting availability cache to the router. Results are
// non-authoritative and best-effort: a failed probe marks a backend
// unhealthy but never raises.
type Poller struct {
	probers  []Prober
	interval time.Duration
	ttl      time.Duration
	deadline time.Duration
	sink     observability.Sink

	mu    sync.RWMutex
	cache map[string]model.AvailabilityEntry

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Poller over probers. interval defaults to 60s, ttl to 60s,
// and the per-probe deadline to 12s when zero values are given.
func New(probers []Prober, interval, ttl, probeDeadline time.Duration, sink observability.Sink) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if probeDeadline <= 0 {
		probeDeadline = 12 * time.Second
	}
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Poller{
		probers:  probers,
		interval: interval,
		ttl:      ttl,
		deadline: probeDeadline,
		sink:     sink,
		cache:    make(map[string]model.AvailabilityEntry),
	}
}

// Start launches the background polling loop. An immediate poll runs
// synchronously before returning so the cache isn't empty when the first
// request arrives right after startup.
func (p *Poller) Start(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.pollOnce(pollCtx)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				p.pollOnce(pollCtx)
			}
		}
	}()
}

// Stop cancels the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) pollOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, prober := range p.probers {
		prober := prober
		g.Go(func() error {
			deadline := time.Now().Add(p.deadline)
			healthy := prober.IsAvailable(gctx, deadline)
			p.set(prober.Name(), healthy)
			p.sink.Emit(observability.Event{
				Kind:    observability.EventHealthCheck,
				Backend: prober.Name(),
				Message: "health check completed",
				Fields:  map[string]any{"healthy": healthy},
			})
			return nil
		})
	}
	_ = g.Wait() // probe goroutines never return an error; failures just mark unhealthy
}

func (p *Poller) set(name string, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[name] = model.AvailabilityEntry{
		Healthy:   healthy,
		ExpiresAt: time.Now().Add(p.ttl).UnixNano(),
	}
}

// Healthy implements router.AvailabilityChecker.
func (p *Poller) Healthy(name string) (bool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.cache[name]
	if !ok {
		return false, false
	}
	if time.Now().UnixNano() >= entry.ExpiresAt {
		return false, false
	}
	return entry.Healthy, true
}
