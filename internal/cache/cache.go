// Package cache implements the response cache: a keyed lookup/insert of
// prior responses with TTL and size accounting. Two backends are provided,
// a sqlite-backed one atop internal/storage for the default single-process
// deployment and a Redis-backed one for deployments that already run a
// shared Redis.
package cache

import (
	"context"

	"github.com/claudette-ai/claudette/internal/model"
)

// Cache is the Response Cache contract. Implementations must treat their
// own storage errors as CacheUnavailable conditions the caller degrades
// gracefully from — Get returning (zero, false, err) is always safe to
// treat as a miss.
type Cache interface {
	// Get looks up key, returning (entry, true, nil) on a live hit. An
	// expired entry is never returned as a hit even if the row still
	// physically exists.
	Get(ctx context.Context, key string) (model.CacheEntry, bool, error)
	// Put inserts or replaces the entry for key.
	Put(ctx context.Context, entry model.CacheEntry) error
	// SweepExpired deletes expired rows, plus unused rows (access_count==0)
	// older than one day.
	SweepExpired(ctx context.Context) error
	// Stats reports current occupancy for `claudette cache stats`.
	Stats(ctx context.Context) (model.CacheStats, error)
	// Clear empties the cache entirely, for `claudette cache clear`.
	Clear(ctx context.Context) error
}

// MaxEntries is the default upper bound on cached rows.
const MaxEntries = 10000
