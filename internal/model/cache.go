package model

import "time"

// CacheEntry is one row of the response cache, keyed by request fingerprint.
type CacheEntry struct {
	Key          string
	PromptHash   string
	Response     Response
	CreatedAt    time.Time
	ExpiresAt    time.Time
	SizeBytes    int64
	AccessCount  int64
	LastAccessed time.Time
}

// Expired reports whether the entry is stale as of now. Every reader must
// check this before treating a lookup as a hit.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheStats summarizes cache occupancy for the `claudette cache stats` CLI
// command and the Orchestrator's status report.
type CacheStats struct {
	EntryCount   int64
	TotalBytes   int64
	HitCount     int64
	MissCount    int64
	EvictedCount int64
}
