package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/storage"
)

// SQLStore persists ledger rows and backend metrics through an
// internal/storage.DB. Used for both a file-backed and an in-memory
// (storage.NewMemory) database — the schema and queries are identical.
type SQLStore struct {
	db *storage.DB
	mu sync.Mutex // serializes UpdateBackendMetrics' read-modify-write
}

// NewSQLStore wraps db. Callers must have already run migrations.
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) AppendQuota(ctx context.Context, entry model.LedgerEntry) error {
	return storage.WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		_, err := s.db.Conn().ExecContext(ctx, `
			INSERT INTO quota_entries
				(request_id, timestamp, backend, prompt_hash, tokens_input, tokens_output, cost_eur, cache_hit, latency_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.RequestID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Backend, entry.PromptHash,
			entry.TokensInput, entry.TokensOutput, entry.CostEUR, entry.CacheHit, entry.LatencyMS,
		)
		if err != nil {
			return fmt.Errorf("ledger: append quota: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) RecentEntries(ctx context.Context, since time.Time) ([]model.LedgerEntry, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, request_id, timestamp, backend, prompt_hash, tokens_input, tokens_output, cost_eur, cache_hit, latency_ms
		FROM quota_entries WHERE timestamp >= ? ORDER BY id DESC`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent entries: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.RequestID, &ts, &e.Backend, &e.PromptHash, &e.TokensInput, &e.TokensOutput, &e.CostEUR, &e.CacheHit, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DailyAggregates(ctx context.Context, days int) ([]model.Aggregate, error) {
	since := time.Now().AddDate(0, 0, -days).UTC().Format("2006-01-02")
	return s.aggregates(ctx, `
		SELECT bucket, backend, requests, cache_hits, tokens_input, tokens_output, cost_eur, avg_latency_ms
		FROM daily_backend_aggregates
		WHERE bucket >= ?
		ORDER BY bucket DESC, backend ASC`, since, "2006-01-02")
}

func (s *SQLStore) HourlyAggregates(ctx context.Context, hours int) ([]model.Aggregate, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour).UTC().Format("2006-01-02T15:00:00Z")
	return s.aggregates(ctx, `
		SELECT bucket, backend, requests, cache_hits, tokens_input, tokens_output, cost_eur, avg_latency_ms
		FROM hourly_backend_aggregates
		WHERE bucket >= ?
		ORDER BY bucket DESC, backend ASC`, since, "2006-01-02T15:04:05Z")
}

// aggregates runs one of the rollup-view queries and scans its rows, which
// share a column layout by construction.
func (s *SQLStore) aggregates(ctx context.Context, query, since, bucketLayout string) ([]model.Aggregate, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("ledger: aggregates: %w", err)
	}
	defer rows.Close()

	var out []model.Aggregate
	for rows.Next() {
		var a model.Aggregate
		var bucket string
		if err := rows.Scan(&bucket, &a.Backend, &a.Requests, &a.CacheHits, &a.TokensInput, &a.TokensOutput, &a.CostEUR, &a.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("ledger: scan aggregate: %w", err)
		}
		a.Bucket, _ = time.Parse(bucketLayout, bucket)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateBackendMetrics(ctx context.Context, backend string, latencyMS float64, success bool, costEUR float64) error {
	const alpha = 0.1
	s.mu.Lock()
	defer s.mu.Unlock()

	return storage.WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		tx, err := s.db.Conn().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("ledger: begin metrics tx: %w", err)
		}
		defer tx.Rollback()

		var avgLatency, successRate, totalCost float64
		err = tx.QueryRowContext(ctx, `SELECT avg_latency_ms, success_rate, total_cost_eur FROM backend_metrics WHERE backend = ?`, backend).
			Scan(&avgLatency, &successRate, &totalCost)
		switch {
		case err == sql.ErrNoRows:
			avgLatency, successRate = latencyMS, 0.9
		case err != nil:
			return fmt.Errorf("ledger: read backend metrics: %w", err)
		}

		avgLatency = avgLatency*(1-alpha) + latencyMS*alpha
		delta := -alpha
		if success {
			delta = alpha
		}
		successRate = model.Clamp01(successRate + delta)
		totalCost += costEUR

		_, err = tx.ExecContext(ctx, `
			INSERT INTO backend_metrics (backend, avg_latency_ms, success_rate, total_cost_eur)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(backend) DO UPDATE SET
				avg_latency_ms = excluded.avg_latency_ms,
				success_rate = excluded.success_rate,
				total_cost_eur = excluded.total_cost_eur`,
			backend, avgLatency, successRate, totalCost)
		if err != nil {
			return fmt.Errorf("ledger: upsert backend metrics: %w", err)
		}
		return tx.Commit()
	})
}

func (s *SQLStore) Sweep(ctx context.Context, policy model.RetentionPolicy) error {
	cutoff := time.Now().AddDate(0, 0, -policy.QuotaDays).UTC().Format(time.RFC3339Nano)
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM quota_entries WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("ledger: sweep quota entries: %w", err)
	}
	metricCutoff := time.Now().AddDate(0, 0, -policy.CacheMetricDays).UTC().Format("2006-01-02")
	for _, table := range []string{"cache_stats_daily", "compression_stats"} {
		if _, err := s.db.Conn().ExecContext(ctx, `DELETE FROM `+table+` WHERE bucket < ?`, metricCutoff); err != nil {
			return fmt.Errorf("ledger: sweep %s: %w", table, err)
		}
	}
	return nil
}
