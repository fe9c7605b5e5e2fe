package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/sqlite"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.OpenMigrated(context.Background(), sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewTestProjectionRepo returns a projection repository over a fresh test database.
func NewTestProjectionRepo(t *testing.T) *sqlite.ProjectionRepository {
	t.Helper()
	return sqlite.NewProjectionRepository(NewTestDB(t))
}
