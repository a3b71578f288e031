package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by Migrate
const SchemaVersion = 1

// Migrate creates the activities and challenges tables and records the
// applied version in schema_migrations
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := dialect.timestampType()
	statements := []struct {
		name string
		ddl  string
	}{
		{"activities table", `
			CREATE TABLE IF NOT EXISTS activities (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				category TEXT NOT NULL,
				quantity DOUBLE PRECISION NOT NULL,
				impact_kg DOUBLE PRECISION NOT NULL,
				points INTEGER NOT NULL,
				created_at ` + ts + ` NOT NULL,
				approved BOOLEAN NOT NULL DEFAULT FALSE
			)`},
		{"activities index", `CREATE INDEX IF NOT EXISTS idx_activities_user ON activities (user_id, approved)`},
		{"challenges table", `
			CREATE TABLE IF NOT EXISTS challenges (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				period_key TEXT NOT NULL,
				level TEXT NOT NULL,
				template_id TEXT NOT NULL,
				target INTEGER NOT NULL CHECK (target >= 1),
				target_metric TEXT NOT NULL,
				reward_points INTEGER NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				progress INTEGER NOT NULL DEFAULT 0 CHECK (progress >= 0 AND progress <= target),
				status TEXT NOT NULL,
				generated_by TEXT NOT NULL,
				created_at ` + ts + ` NOT NULL,
				completed_at ` + ts + ` NULL,
				expires_at ` + ts + ` NOT NULL,
				UNIQUE (user_id, period_key)
			)`},
		{"challenges index", `CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges (user_id, status)`},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("migrate: create %s: %w", stmt.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, dialect.rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}
