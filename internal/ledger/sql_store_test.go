package ledger

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

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := storage.NewMemory(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

func TestAppendQuotaIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := model.LedgerEntry{Timestamp: time.Now(), Backend: "B1", PromptHash: "h1", TokensInput: 10, TokensOutput: 20, CostEUR: 0.000003, LatencyMS: 50}
	require.NoError(t, s.AppendQuota(ctx, entry))
	require.NoError(t, s.AppendQuota(ctx, entry))

	rows, err := s.RecentEntries(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].ID, rows[1].ID, "row ids must be monotonically increasing, never reused")
}

func TestRecentEntriesFiltersBySince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := model.LedgerEntry{Timestamp: time.Now().Add(-48 * time.Hour), Backend: "B1", PromptHash: "old"}
	fresh := model.LedgerEntry{Timestamp: time.Now(), Backend: "B1", PromptHash: "fresh"}
	require.NoError(t, s.AppendQuota(ctx, old))
	require.NoError(t, s.AppendQuota(ctx, fresh))

	rows, err := s.RecentEntries(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fresh", rows[0].PromptHash)
}

func TestUpdateBackendMetricsAppliesEMAAndStaysInBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, s.UpdateBackendMetrics(ctx, "B1", 100, true, 0.0001))
	}
	var successRate float64
	row := s.db.Conn().QueryRowContext(ctx, `SELECT success_rate FROM backend_metrics WHERE backend = ?`, "B1")
	require.NoError(t, row.Scan(&successRate))
	assert.GreaterOrEqual(t, successRate, 0.0)
	assert.LessOrEqual(t, successRate, 1.0)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.UpdateBackendMetrics(ctx, "B1", 100, false, 0))
	}
	row = s.db.Conn().QueryRowContext(ctx, `SELECT success_rate FROM backend_metrics WHERE backend = ?`, "B1")
	require.NoError(t, row.Scan(&successRate))
	assert.GreaterOrEqual(t, successRate, 0.0)
	assert.LessOrEqual(t, successRate, 1.0)
}

func TestSweepPrunesOldEntriesOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := model.LedgerEntry{Timestamp: time.Now().AddDate(0, 0, -40), Backend: "B1", PromptHash: "old"}
	fresh := model.LedgerEntry{Timestamp: time.Now(), Backend: "B1", PromptHash: "fresh"}
	require.NoError(t, s.AppendQuota(ctx, old))
	require.NoError(t, s.AppendQuota(ctx, fresh))

	require.NoError(t, s.Sweep(ctx, model.DefaultRetentionPolicy()))

	rows, err := s.RecentEntries(ctx, time.Now().AddDate(0, 0, -100))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fresh", rows[0].PromptHash)
}

func TestAggregatesRollUpByBackend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendQuota(ctx, model.LedgerEntry{Timestamp: now, Backend: "B1", PromptHash: "h", TokensInput: 10, TokensOutput: 20, CostEUR: 0.001, LatencyMS: 100}))
	}
	require.NoError(t, s.AppendQuota(ctx, model.LedgerEntry{Timestamp: now, Backend: "B2", PromptHash: "h", CacheHit: true}))

	daily, err := s.DailyAggregates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "B1", daily[0].Backend)
	assert.EqualValues(t, 3, daily[0].Requests)
	assert.EqualValues(t, 30, daily[0].TokensInput)
	assert.EqualValues(t, 1, daily[1].CacheHits)

	hourly, err := s.HourlyAggregates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	assert.EqualValues(t, 3, hourly[0].Requests)
}

func TestNoopStoreNeverErrors(t *testing.T) {
	var s NoopStore
	ctx := context.Background()
	require.NoError(t, s.AppendQuota(ctx, model.LedgerEntry{}))
	entries, err := s.RecentEntries(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, s.UpdateBackendMetrics(ctx, "B1", 1, true, 0))
	require.NoError(t, s.Sweep(ctx, model.DefaultRetentionPolicy()))
}
