package sqlite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/schema"
)

// ErrMigrationFailed indicates a migration failure.
var ErrMigrationFailed = errors.New("sqlite: migration failed")

// Migrator applies the embedded migrations.
type Migrator struct {
	db         *sqlx.DB
	migrations []schema.Migration
}

var _ schema.Migrator = (*Migrator)(nil)

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, migrations: Migrations()}
}

type appliedRow struct {
	Version   int    `db:"version"`
	AppliedAt string `db:"applied_at"`
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	if _, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT version, applied_at FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("loading applied migrations: %w", err)
	}

	out := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		at, _ := time.Parse(timeLayout, r.AppliedAt)
		out[r.Version] = at
	}
	return out, nil
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := withTx(ctx, m.db, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				mig.Version, mig.Name, formatTime(time.Now()))
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	idx := slices.IndexFunc(m.migrations, func(mig schema.Migration) bool { return mig.Version == last })
	if idx < 0 || m.migrations[idx].DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}
	down := m.migrations[idx].DownSQL

	return withTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, down); err != nil {
			return fmt.Errorf("rolling back migration %d: %w", last, err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, last)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]schema.Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// Migrations returns the embedded migrations in version order.
func Migrations() []schema.Migration {
	return []schema.Migration{
		{
			Version: 1,
			Name:    "create_projections",
			UpSQL: `CREATE TABLE IF NOT EXISTS projection_plans (
				id           TEXT PRIMARY KEY,
				rut          TEXT NOT NULL,
				program_code TEXT NOT NULL,
				catalog_code TEXT NOT NULL DEFAULT '',
				name         TEXT NOT NULL CHECK(length(trim(name)) > 0),
				semesters    TEXT NOT NULL DEFAULT '[]' CHECK(json_valid(semesters)),
				created_at   TEXT NOT NULL,
				updated_at   TEXT NOT NULL,
				UNIQUE (rut, program_code, name)
			);
			CREATE INDEX IF NOT EXISTS idx_projection_plans_owner_updated
				ON projection_plans(rut, program_code, updated_at DESC);`,
			DownSQL: `DROP TABLE IF EXISTS projection_plans;`,
		},
	}
}
