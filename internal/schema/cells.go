package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateCells creates cells (work items), their typed dependency edges,
// labels, and comments — the teacher's issues/dependencies/events
// tables generalised from a single-tenant issue tracker to the
// project-scoped cell graph spec §3/§4.7 describe.
func migrateCells(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)

	cells := `CREATE TABLE IF NOT EXISTS cells (
		id TEXT PRIMARY KEY,
		project_key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		issue_type TEXT NOT NULL DEFAULT 'task',
		status TEXT NOT NULL DEFAULT 'open',
		priority INTEGER NOT NULL DEFAULT 2,
		parent_id TEXT,
		assignee TEXT NOT NULL DEFAULT '',
		created_at ` + ts + ` NOT NULL,
		updated_at ` + ts + ` NOT NULL,
		closed_at ` + ts + `,
		closed_reason TEXT NOT NULL DEFAULT '',
		deleted_at ` + ts + `,
		deleted_by TEXT NOT NULL DEFAULT '',
		delete_reason TEXT NOT NULL DEFAULT ''
	)`
	if _, err := tx.Exec(ctx, cells); err != nil {
		return err
	}
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_cells_project_status ON cells(project_key, status)`,
		`CREATE INDEX IF NOT EXISTS idx_cells_parent ON cells(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cells_created_at ON cells(created_at)`,
	} {
		if _, err := tx.Exec(ctx, idx); err != nil {
			return err
		}
	}

	deps := `CREATE TABLE IF NOT EXISTS cell_dependencies (
		cell_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		relationship TEXT NOT NULL DEFAULT 'blocks',
		created_at ` + ts + ` NOT NULL,
		PRIMARY KEY (cell_id, depends_on_id, relationship)
	)`
	if _, err := tx.Exec(ctx, deps); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON cell_dependencies(depends_on_id)`); err != nil {
		return err
	}

	labels := `CREATE TABLE IF NOT EXISTS cell_labels (
		cell_id TEXT NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (cell_id, label)
	)`
	if _, err := tx.Exec(ctx, labels); err != nil {
		return err
	}

	comments := `CREATE TABLE IF NOT EXISTS cell_comments (
		id TEXT PRIMARY KEY,
		cell_id TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		parent_id TEXT,
		created_at ` + ts + ` NOT NULL,
		updated_at ` + ts + ` NOT NULL
	)`
	if _, err := tx.Exec(ctx, comments); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_comments_cell ON cell_comments(cell_id)`)
	return err
}
