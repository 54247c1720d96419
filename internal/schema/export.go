package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateExportTracking creates the dirty-set table C9's JSONL export
// drains, mirroring the teacher's dirty_issues table.
func migrateExportTracking(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)
	_, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS dirty_cells (
		cell_id TEXT PRIMARY KEY,
		marked_at `+ts+` NOT NULL
	)`)
	return err
}

func migrateCompositeIndexes(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_cells_ready ON cells(project_key, status, priority, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_order ON message_recipients(agent_name, message_id)`,
	} {
		if _, err := tx.Exec(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
