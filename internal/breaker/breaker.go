// Package breaker implements the per-backend circuit breaker state
// machine: a sliding window of outcomes gates admission, and a progressive
// reset timer governs recovery.
package breaker

import (
	"math"
	"sync"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/observability"
)

// Config tunes one breaker's thresholds. Defaults match the configuration
// object's circuit_breaker block.
type Config struct {
	FailureThreshold      int
	BaseReset             time.Duration
	HalfOpenMaxCalls      int
	FailureRateThreshold  float64 // percent, e.g. 50 means 50%
	SlowCallThreshold     time.Duration
	SlowCallRateThreshold float64 // percent
	WindowSize            int
}

// DefaultConfig returns the standard breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:      5,
		BaseReset:             30 * time.Second,
		HalfOpenMaxCalls:      3,
		FailureRateThreshold:  50,
		SlowCallThreshold:     15 * time.Second,
		SlowCallRateThreshold: 80,
		WindowSize:            20,
	}
}

// Breaker is a single backend's circuit breaker. Safe for concurrent use;
// the router holds one per registered backend and serializes access to it
// through the exported methods only.
type Breaker struct {
	name string
	cfg  Config
	sink observability.Sink

	mu                  sync.Mutex
	state               model.BreakerState
	window              []model.Outcome // ring buffer, oldest first
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

// New creates a breaker for the named backend, starting Closed.
func New(name string, cfg Config, sink observability.Sink) *Breaker {
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		sink:   sink,
		state:  model.BreakerClosed,
		window: make([]model.Outcome, 0, cfg.WindowSize),
	}
}

// Allow reports whether a call may proceed right now. In HalfOpen it admits
// at most HalfOpenMaxCalls concurrent probes; callers that are admitted
// must eventually call RecordSuccess or RecordFailure exactly once.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.BreakerClosed:
		return true
	case model.BreakerOpen:
		if now.Sub(b.openedAt) >= b.resetDelay() {
			b.transitionTo(model.BreakerHalfOpen, now)
			b.halfOpenInFlight = 1
			return true
		}
		return false
	case model.BreakerHalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenMaxCalls {
			b.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess(durationMS int64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(model.Outcome{Success: true, DurationMS: durationMS})
	b.consecutiveFailures = 0

	if b.state == model.BreakerHalfOpen {
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.transitionTo(model.BreakerClosed, now)
		b.window = b.window[:0]
	}
}

// RecordFailure records a failed (or synthetically-failed, e.g. timeout)
// call outcome and evaluates whether the breaker should trip.
func (b *Breaker) RecordFailure(durationMS int64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(model.Outcome{Success: false, DurationMS: durationMS})
	b.consecutiveFailures++

	if b.state == model.BreakerHalfOpen {
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.transitionTo(model.BreakerOpen, now)
		return
	}

	if b.state == model.BreakerClosed && b.shouldTrip() {
		b.transitionTo(model.BreakerOpen, now)
	}
}

// shouldTrip evaluates the three Closed->Open triggers. Tie-break: failure
// rate takes precedence over slow-call rate when both fire simultaneously
// (both transition to Open regardless, but the emitted event names
// failure_rate as the reason).
func (b *Breaker) shouldTrip() bool {
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		return true
	}
	if len(b.window) < b.cfg.WindowSize/2 {
		return false
	}
	if b.failureRate() >= b.cfg.FailureRateThreshold/100 {
		return true
	}
	if b.slowCallRate() >= b.cfg.SlowCallRateThreshold/100 {
		return true
	}
	return false
}

func (b *Breaker) failureRate() float64 {
	if len(b.window) == 0 {
		return 0
	}
	var failures int
	for _, o := range b.window {
		if !o.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(b.window))
}

func (b *Breaker) slowCallRate() float64 {
	if len(b.window) == 0 {
		return 0
	}
	var slow int
	threshMS := b.cfg.SlowCallThreshold.Milliseconds()
	for _, o := range b.window {
		if o.DurationMS >= threshMS {
			slow++
		}
	}
	return float64(slow) / float64(len(b.window))
}

func (b *Breaker) record(o model.Outcome) {
	b.window = append(b.window, o)
	if len(b.window) > b.cfg.WindowSize {
		b.window = b.window[len(b.window)-b.cfg.WindowSize:]
	}
}

// resetDelay computes the progressive reset delay: base_reset *
// 1.5^(failures-threshold), capped at 30 minutes.
func (b *Breaker) resetDelay() time.Duration {
	over := b.consecutiveFailures - b.cfg.FailureThreshold
	if over < 0 {
		over = 0
	}
	delay := float64(b.cfg.BaseReset) * math.Pow(1.5, float64(over))
	ceiling := float64(30 * time.Minute)
	if delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay)
}

func (b *Breaker) transitionTo(to model.BreakerState, now time.Time) {
	from := b.state
	b.state = to
	if to == model.BreakerOpen {
		b.openedAt = now
	}
	reason := "failure_rate"
	if from == model.BreakerClosed && b.consecutiveFailures >= b.cfg.FailureThreshold {
		reason = "consecutive_failures"
	} else if from == model.BreakerClosed && b.slowCallRate() >= b.cfg.SlowCallRateThreshold/100 && b.failureRate() < b.cfg.FailureRateThreshold/100 {
		reason = "slow_call_rate"
	}
	b.sink.Emit(observability.Event{
		Kind:    observability.EventBreakerStateChange,
		Backend: b.name,
		Message: "circuit breaker state changed",
		Fields: map[string]any{
			"from":   string(from),
			"to":     string(to),
			"reason": reason,
		},
	})
}

// Snapshot returns a read-only view of current breaker state.
func (b *Breaker) Snapshot() model.BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	var openedAt int64
	if !b.openedAt.IsZero() {
		openedAt = b.openedAt.UnixNano()
	}
	return model.BreakerSnapshot{
		Backend:             b.name,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		WindowSize:          len(b.window),
		FailureRate:         b.failureRate(),
		SlowCallRate:        b.slowCallRate(),
		OpenedAt:            openedAt,
	}
}

// State returns the current breaker state without mutating it.
func (b *Breaker) State() model.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ready reports whether the breaker could admit a call right now: Closed
// and HalfOpen breakers are candidates, and an Open breaker becomes a
// candidate again once its reset delay has elapsed. Candidate filtering
// must use this rather than State, or an Open breaker would be excluded
// before Allow ever gets the chance to promote it to HalfOpen and probe.
func (b *Breaker) Ready(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != model.BreakerOpen {
		return true
	}
	return now.Sub(b.openedAt) >= b.resetDelay()
}
