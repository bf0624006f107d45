package model

// BackendDescriptor is the static configuration a backend is built from.
// Descriptors are created at init and owned exclusively by the router
// registry; nothing mutates them during request handling.
type BackendDescriptor struct {
	Name             string
	Model            string
	CostPer1KTokens  float64
	BaseURL          string
	APIKeyRef        string // env var name or opaque credential handle, never the key itself
	Enabled          bool
	Priority         int
	Capability       CapabilityProfile
}

// BreakerState enumerates the circuit-breaker state machine.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// RollingMetrics holds the exponentially-smoothed per-backend statistics
// the scorer reads. Owned exclusively by the router; updated after every
// completed send.
type RollingMetrics struct {
	AvgLatencyMS float64
	SuccessRate  float64 // [0,1]
	QualityScore float64 // [0,1]
}

// Clamp01 clamps v into [0,1]. Success rates and quality scores must stay
// in range after every update.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AvailabilityEntry is one row of the availability cache the health poller
// maintains.
type AvailabilityEntry struct {
	Healthy   bool
	ExpiresAt int64 // unix nanos
}
