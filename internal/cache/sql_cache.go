package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/storage"
)

// SQLCache persists cache rows through an internal/storage.DB.
type SQLCache struct {
	db *storage.DB
}

// NewSQLCache wraps db. Callers must have already run migrations.
func NewSQLCache(db *storage.DB) *SQLCache {
	return &SQLCache{db: db}
}

func (c *SQLCache) Get(ctx context.Context, key string) (model.CacheEntry, bool, error) {
	var blob []byte
	var e model.CacheEntry
	var createdAt, expiresAt, lastAccessed string

	row := c.db.Conn().QueryRowContext(ctx, `
		SELECT key, prompt_hash, response_blob, created_at, expires_at, size_bytes, access_count, last_accessed
		FROM cache_entries WHERE key = ?`, key)
	err := row.Scan(&e.Key, &e.PromptHash, &blob, &createdAt, &expiresAt, &e.SizeBytes, &e.AccessCount, &lastAccessed)
	if err == sql.ErrNoRows {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("cache: get: %w", err)
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	e.LastAccessed, _ = time.Parse(time.RFC3339Nano, lastAccessed)
	if err := json.Unmarshal(blob, &e.Response); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("cache: decode response blob: %w", err)
	}

	now := time.Now()
	if e.Expired(now) {
		return model.CacheEntry{}, false, nil
	}

	if _, err := c.db.Conn().ExecContext(ctx, `
		UPDATE cache_entries SET access_count = access_count + 1, last_accessed = ? WHERE key = ?`,
		now.UTC().Format(time.RFC3339Nano), key); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("cache: touch access stats: %w", err)
	}
	e.AccessCount++
	e.LastAccessed = now

	return e, true, nil
}

func (c *SQLCache) Put(ctx context.Context, entry model.CacheEntry) error {
	blob, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("cache: encode response blob: %w", err)
	}
	entry.SizeBytes = int64(len(blob))

	return storage.WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		_, err := c.db.Conn().ExecContext(ctx, `
			INSERT INTO cache_entries (key, prompt_hash, response_blob, created_at, expires_at, size_bytes, access_count, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(key) DO UPDATE SET
				prompt_hash = excluded.prompt_hash,
				response_blob = excluded.response_blob,
				created_at = excluded.created_at,
				expires_at = excluded.expires_at,
				size_bytes = excluded.size_bytes,
				access_count = 0,
				last_accessed = excluded.last_accessed`,
			entry.Key, entry.PromptHash, blob,
			entry.CreatedAt.UTC().Format(time.RFC3339Nano), entry.ExpiresAt.UTC().Format(time.RFC3339Nano),
			entry.SizeBytes, entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("cache: put: %w", err)
		}
		return c.evictOverflow(ctx)
	})
}

// evictOverflow enforces MaxEntries by dropping the oldest rows once the
// cache grows past the bound.
func (c *SQLCache) evictOverflow(ctx context.Context) error {
	_, err := c.db.Conn().ExecContext(ctx, `
		DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries ORDER BY created_at ASC
			LIMIT MAX(0, (SELECT COUNT(*) FROM cache_entries) - ?)
		)`, MaxEntries)
	if err != nil {
		return fmt.Errorf("cache: evict overflow: %w", err)
	}
	return nil
}

func (c *SQLCache) SweepExpired(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	dayAgo := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339Nano)

	if _, err := c.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("cache: sweep expired: %w", err)
	}
	if _, err := c.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries WHERE access_count = 0 AND created_at < ?`, dayAgo); err != nil {
		return fmt.Errorf("cache: sweep unused: %w", err)
	}
	return c.recordCompressionStats(ctx)
}

// recordCompressionStats writes a snapshot into today's compression_stats
// bucket: the summed access_count of every live cache entry that has been
// hit, and the sum of access_count * size_bytes over those entries (each
// hit counted as one response served from the cache instead of regenerated).
// No CLI command reads this table.
func (c *SQLCache) recordCompressionStats(ctx context.Context) error {
	bucket := time.Now().UTC().Format("2006-01-02")
	row := c.db.Conn().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(access_count), 0), COALESCE(SUM(access_count * size_bytes), 0)
		FROM cache_entries WHERE access_count > 0`)
	var deduped, bytesSaved int64
	if err := row.Scan(&deduped, &bytesSaved); err != nil {
		return fmt.Errorf("cache: compute compression stats: %w", err)
	}
	_, err := c.db.Conn().ExecContext(ctx, `
		INSERT INTO compression_stats (bucket, entries_deduped, bytes_saved)
		VALUES (?, ?, ?)
		ON CONFLICT(bucket) DO UPDATE SET
			entries_deduped = excluded.entries_deduped,
			bytes_saved = excluded.bytes_saved`,
		bucket, deduped, bytesSaved)
	if err != nil {
		return fmt.Errorf("cache: record compression stats: %w", err)
	}
	return nil
}

func (c *SQLCache) Stats(ctx context.Context) (model.CacheStats, error) {
	var stats model.CacheStats
	row := c.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries`)
	if err := row.Scan(&stats.EntryCount, &stats.TotalBytes); err != nil {
		return model.CacheStats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return stats, nil
}

func (c *SQLCache) Clear(ctx context.Context) error {
	if _, err := c.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}
