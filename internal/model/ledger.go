package model

import "time"

// LedgerEntry is one append-only quota ledger row. Rows are never updated
// in place, and ids grow monotonically within a session.
type LedgerEntry struct {
	ID           int64
	RequestID    string
	Timestamp    time.Time
	Backend      string
	PromptHash   string
	TokensInput  int
	TokensOutput int
	CostEUR      float64
	CacheHit     bool
	LatencyMS    int64
}

// Aggregate is one row of a daily/hourly rollup view over ledger entries.
type Aggregate struct {
	Bucket       time.Time
	Backend      string
	Requests     int64
	CacheHits    int64
	TokensInput  int64
	TokensOutput int64
	CostEUR      float64
	AvgLatencyMS float64
}

// LedgerSummary rolls up the trailing 24 hours of quota activity for
// status reporting.
type LedgerSummary struct {
	Requests     int64
	CacheHits    int64
	TokensInput  int64
	TokensOutput int64
	CostEUR      float64
}

// RetentionPolicy controls how long ledger and cache-metric rows are kept
// before the sweeper prunes them.
type RetentionPolicy struct {
	QuotaDays       int
	CacheMetricDays int
}

// DefaultRetentionPolicy keeps quota rows 30 days and cache metrics 7.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{QuotaDays: 30, CacheMetricDays: 7}
}
