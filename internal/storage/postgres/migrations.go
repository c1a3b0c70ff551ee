package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID keys the advisory lock that serializes relayer replicas
// migrating the same database.
const migrationLockID = 0x636f6e74696e75

type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "submission history",
		SQL: `
		CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			pool TEXT NOT NULL,
			user_key TEXT NOT NULL,
			amount_in BIGINT NOT NULL,
			min_amount_out BIGINT NOT NULL,
			sequence BIGINT NOT NULL,
			signature TEXT,
			status TEXT NOT NULL,
			attempts INT NOT NULL,
			error_code TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_signature ON submissions(signature);
		CREATE INDEX IF NOT EXISTS idx_submissions_sequence ON submissions(sequence);
		CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at DESC);
		`,
	},
	{
		Version:     2,
		Description: "sequence checkpoints",
		SQL: `
		CREATE TABLE IF NOT EXISTS sequence_checkpoints (
			key TEXT PRIMARY KEY,
			sequence BIGINT NOT NULL CHECK (sequence >= 0),
			updated_at TIMESTAMP NOT NULL
		);
		`,
	},
	{
		Version:     3,
		Description: "per-pool submission lookups",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_submissions_pool_status ON submissions(pool, status);
		`,
	},
}

// pending returns the migrations newer than current, in order.
func pending(current int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > current {
			out = append(out, m)
		}
	}
	return out
}

type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Up applies every pending migration in one transaction held under the
// migration advisory lock. It returns the schema version reached.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(migrationLockID)); err != nil {
		return 0, fmt.Errorf("failed to take migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return 0, err
	}

	for _, migration := range pending(current) {
		if _, err := tx.Exec(ctx, migration.SQL); err != nil {
			return 0, fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			return 0, fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		current = migration.Version
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit migrations: %w", err)
	}
	return current, nil
}

func currentVersion(ctx context.Context, tx pgx.Tx) (int, error) {
	var version int
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}
