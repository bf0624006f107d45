package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudette-ai/claudette/internal/model"
	"github.com/claudette-ai/claudette/internal/storage"
	"github.com/claudette-ai/claudette/migrations"
)

func newTestCache(t *testing.T) *SQLCache {
	t.Helper()
	ctx := context.Background()
	db, err := storage.NewMemory(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	t.Cleanup(func() { db.Close() })
	return NewSQLCache(db)
}

func TestPutThenGetIsAHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()

	entry := model.CacheEntry{
		Key:        "k1",
		PromptHash: "p1",
		Response:   model.Response{Content: "ok", BackendUsed: "B1"},
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, c.Put(ctx, entry))

	got, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "ok", got.Response.Content)
	assert.EqualValues(t, 1, got.AccessCount)
}

func TestExpiredEntryIsNeverAHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()

	entry := model.CacheEntry{
		Key:       "k1",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Minute),
		Response:  model.Response{Content: "stale"},
	}
	require.NoError(t, c.Put(ctx, entry))

	_, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPutReplacesExistingKey(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()

	first := model.CacheEntry{Key: "k1", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Response: model.Response{Content: "v1"}}
	second := model.CacheEntry{Key: "k1", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Response: model.Response{Content: "v2"}}
	require.NoError(t, c.Put(ctx, first))
	require.NoError(t, c.Put(ctx, second))

	got, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "v2", got.Response.Content)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.EntryCount)
}

func TestSweepExpiredRemovesStaleRows(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, c.Put(ctx, model.CacheEntry{Key: "stale", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, c.Put(ctx, model.CacheEntry{Key: "fresh", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, c.SweepExpired(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.EntryCount)
}

func TestClearEmptiesCache(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, c.Put(ctx, model.CacheEntry{Key: "k1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, c.Clear(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.EntryCount)
}
