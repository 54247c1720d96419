package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateEvents creates the append-only event log. `sequence` doubles as
// the row's own auto-increment primary key: both are monotonic and
// assigned at insert time, so rather than maintain two counters the
// kernel lets `id` and `sequence` coincide (an Open Question the spec
// leaves to implementers; the events table has no separate id column).
func migrateEvents(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	var ddl string
	if d == adapter.DialectPostgres {
		ddl = `CREATE TABLE IF NOT EXISTS events (
			sequence BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			project_key TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			data JSONB NOT NULL
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS events (
			sequence INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			project_key TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			data TEXT NOT NULL
		)`
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_project_seq ON events(project_key, sequence)`); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`)
	return err
}
