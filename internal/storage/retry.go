package storage

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// isRetriable returns true for SQLite errors that indicate a transient lock
// conflict rather than a real failure. modernc.org/sqlite surfaces these as
// plain errors rather than a typed error value, so matching is by message
// the way SQLITE_BUSY/SQLITE_LOCKED report themselves.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// WithRetry executes fn, retrying up to maxRetries times on a locked
// database. Retries use jittered exponential backoff starting at baseDelay.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}
