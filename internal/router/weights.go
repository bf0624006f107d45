package router

import "fmt"

// Weights is the router's dynamic scoring weight blend, an immutable,
// validated value passed in at construction. Use Router.UpdateWeights to
// replace it atomically; there is no other way to mutate it.
//
// These weights blend with, rather than replace, the scorer's fixed
// five-factor weighting: they bias the final candidate ranking toward
// cost, latency, or availability concerns on top of the task-aware score.
type Weights struct {
	CostWeight         float64
	LatencyWeight      float64
	AvailabilityWeight float64
	FallbackEnabled    bool
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{CostWeight: 0.4, LatencyWeight: 0.4, AvailabilityWeight: 0.2, FallbackEnabled: true}
}

// Validate rejects negative weights; the three weights need not sum to
// exactly 1 (they're applied as a blend factor, not a probability
// distribution), but a negative weight would invert a factor's meaning.
func (w Weights) Validate() error {
	if w.CostWeight < 0 || w.LatencyWeight < 0 || w.AvailabilityWeight < 0 {
		return fmt.Errorf("router: weights must be non-negative")
	}
	return nil
}
