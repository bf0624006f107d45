package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// RunMigrations executes all *.up.sql files from migrationsFS in name order,
// recording each as applied in schema_version so reruns are idempotent. This
// is a simple forward-only-by-default runner for a single-file embedded
// database; nothing here pretends to coordinate across multiple nodes.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if err := db.ensureVersionTable(ctx); err != nil {
		return err
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	names, err := sortedMigrationFiles(migrationsFS, ".up.sql")
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}
		db.logger.Info("running migration", "file", name)
		if _, err := db.conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}
		if _, err := db.conn.ExecContext(ctx, `INSERT INTO schema_version (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}
	return nil
}

// MigrateDown reverses applied migrations one at a time, most recent first,
// stopping once targetVersion (an up-migration filename, exclusive) has been
// reached, or once no applied migrations remain when targetVersion is "".
func (db *DB) MigrateDown(ctx context.Context, migrationsFS fs.FS, targetVersion string) error {
	if err := db.ensureVersionTable(ctx); err != nil {
		return err
	}
	for {
		row := db.conn.QueryRowContext(ctx, `SELECT name FROM schema_version ORDER BY id DESC LIMIT 1`)
		var upName string
		if err := row.Scan(&upName); err != nil {
			return nil // nothing left applied
		}
		if upName == targetVersion {
			return nil
		}

		downName := strings.TrimSuffix(upName, ".up.sql") + ".down.sql"
		content, err := fs.ReadFile(migrationsFS, downName)
		if err != nil {
			return fmt.Errorf("storage: read down migration %s: %w", downName, err)
		}

		db.logger.Info("reverting migration", "file", upName)
		if _, err := db.conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute down migration %s: %w", downName, err)
		}
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM schema_version WHERE name = ?`, upName); err != nil {
			return fmt.Errorf("storage: unrecord migration %s: %w", upName, err)
		}
	}
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
	if err != nil {
		return fmt.Errorf("storage: create schema_version: %w", err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("storage: read schema_version: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage: scan schema_version: %w", err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

func sortedMigrationFiles(migrationsFS fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("storage: read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
