package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claudette-ai/claudette/migrations"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := NewMemory(ctx, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	require.NoError(t, db.RunMigrations(ctx, migrations.FS), "rerunning migrations must be a no-op")

	var name string
	row := db.Conn().QueryRowContext(ctx, `SELECT name FROM schema_version WHERE name = '0001_quota_entries.up.sql'`)
	require.NoError(t, row.Scan(&name))
}

func TestMigrateDownReversesLatest(t *testing.T) {
	ctx := context.Background()
	db, err := NewMemory(ctx, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	require.NoError(t, db.MigrateDown(ctx, migrations.FS, "0005_compression_stats.up.sql"))

	_, err = db.Conn().ExecContext(ctx, `SELECT 1 FROM hourly_backend_aggregates LIMIT 1`)
	require.Error(t, err, "view from the rolled-back migration should be gone")

	_, err = db.Conn().ExecContext(ctx, `SELECT 1 FROM compression_stats LIMIT 1`)
	require.NoError(t, err, "migrations down to and including the target should remain applied")
}

func TestWithRetryStopsOnNonRetriableError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, 0, func() error {
		calls++
		return errNotFoundSentinel
	})
	require.ErrorIs(t, err, errNotFoundSentinel)
	require.Equal(t, 1, calls)
}

var errNotFoundSentinel = ErrNotFound
