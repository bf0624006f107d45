package model

// Outcome is one entry in a circuit breaker's sliding window.
type Outcome struct {
	Success    bool
	DurationMS int64
}

// BreakerSnapshot is a read-only view of a breaker's state, used by status
// reporting and structured events.
type BreakerSnapshot struct {
	Backend            string
	State              BreakerState
	ConsecutiveFailures int
	WindowSize         int
	FailureRate        float64
	SlowCallRate       float64
	OpenedAt           int64 // unix nanos, zero if never opened
}

// StatusReport is returned by GetStatus: per-backend health and routing
// state, cache occupancy, and a ledger rollup.
type StatusReport struct {
	Backends []BackendStatus
	Cache    CacheStats
	Ledger   LedgerSummary
	Daily    []Aggregate
}

// BackendStatus summarizes one backend for `claudette status` / `claudette
// backends`.
type BackendStatus struct {
	Name        string
	Healthy     bool
	Breaker     BreakerSnapshot
	Metrics     RollingMetrics
	Priority    int
	Enabled     bool
}
