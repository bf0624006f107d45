// Package ledger is the typed, append-only quota accounting API sitting on
// top of internal/storage. SQL stays in this package; callers never see a
// query.
package ledger

import (
	"context"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
)

// Store is the ledger contract: append-only writes, windowed/aggregate
// reads, EMA-updated backend metrics, and a retention sweeper.
type Store interface {
	// AppendQuota performs an atomic single-row insert. No implementation
	// may update an existing row.
	AppendQuota(ctx context.Context, entry model.LedgerEntry) error
	// RecentEntries returns ledger rows with Timestamp >= since, newest first.
	RecentEntries(ctx context.Context, since time.Time) ([]model.LedgerEntry, error)
	// DailyAggregates returns one Aggregate row per (day, backend) over the
	// trailing `days` days.
	DailyAggregates(ctx context.Context, days int) ([]model.Aggregate, error)
	// HourlyAggregates returns one Aggregate row per (hour, backend) over
	// the trailing `hours` hours.
	HourlyAggregates(ctx context.Context, hours int) ([]model.Aggregate, error)
	// UpdateBackendMetrics applies an EMA update (α≈0.1) to a backend's
	// persisted rolling metrics under a write lock.
	UpdateBackendMetrics(ctx context.Context, backend string, latencyMS float64, success bool, costEUR float64) error
	// Sweep prunes ledger rows older than policy.QuotaDays and cache-metric
	// rollup rows (cache_stats_daily, compression_stats) whose day bucket is
	// older than policy.CacheMetricDays.
	Sweep(ctx context.Context, policy model.RetentionPolicy) error
}
