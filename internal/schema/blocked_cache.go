package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateBlockedCache creates the derived blocked_cache table (spec §3,
// §9 "Cyclic back-references"): a plain rebuildable table rather than a
// foreign-key cycle between cells, dependencies, and itself.
func migrateBlockedCache(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)
	ddl := `CREATE TABLE IF NOT EXISTS blocked_cache (
		cell_id TEXT PRIMARY KEY,
		blocker_ids TEXT NOT NULL DEFAULT '[]',
		updated_at ` + ts + ` NOT NULL
	)`
	_, err := tx.Exec(ctx, ddl)
	return err
}
