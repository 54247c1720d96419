package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

func migrateReservations(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)
	boolType := "INTEGER"
	if d == adapter.DialectPostgres {
		boolType = "BOOLEAN"
	}

	// A reservation claims one or more path patterns at once; each gets
	// its own row sharing the reservation's id so overlap queries
	// (internal/reservations) scan one pattern per row rather than
	// unpacking a JSON array, hence the composite key.
	ddl := `CREATE TABLE IF NOT EXISTS reservations (
		id TEXT NOT NULL,
		project_key TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		path_pattern TEXT NOT NULL,
		exclusive ` + boolType + ` NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		acquired_at ` + ts + ` NOT NULL,
		expires_at ` + ts + `,
		released_at ` + ts + `,
		PRIMARY KEY (id, path_pattern)
	)`
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	// Partial index over active reservations is the one genuinely
	// dialect-specific optimisation here (SQLite and Postgres both
	// support `WHERE released_at IS NULL` partial indexes, but the
	// expression needs no per-dialect rewrite, so it stays one string).
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_reservations_active
		ON reservations(project_key, agent_name) WHERE released_at IS NULL`)
	return err
}
