// Package schema holds the migration types shared by the SQL stores.
package schema

import (
	"context"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies and reverts migrations.
type Migrator interface {
	// Migrate applies every pending migration in version order.
	Migrate(ctx context.Context) error
	// Rollback reverts the last applied migration. It is a no-op when none is applied.
	Rollback(ctx context.Context) error
	// Status lists all known migrations with their applied state.
	Status(ctx context.Context) ([]Migration, error)
}

// Pending returns the migrations in status that are not applied.
func Pending(status []Migration) []Migration {
	var out []Migration
	for _, m := range status {
		if !m.IsApplied {
			out = append(out, m)
		}
	}
	return out
}

// Latest returns the highest version among ms, or nil when ms is empty.
func Latest(ms []Migration) *Migration {
	var latest *Migration
	for i := range ms {
		if latest == nil || ms[i].Version > latest.Version {
			latest = &ms[i]
		}
	}
	return latest
}
