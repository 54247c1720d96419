// Package schema centralises the per-backend DDL differences (vector
// column type, FTS engine, JSON column type) behind a single versioned,
// idempotent migration runner, in the shape of the teacher's own
// internal/storage/sqlite/migrations.go ordered migrationsList.
package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// Migration is one forward-only, idempotent schema step, keyed by a
// monotonically increasing integer version shared across every feature
// domain (events, cells, memory, durable-stream). A version collision
// between two unrelated features is a hard bug (spec §4.2) — the
// ordered list below is the single source of truth for the number
// space, so never assign a version by hand outside it.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx adapter.Tx, dialect adapter.Dialect) error
}

// List is the ordered set of all migrations, applied in Version order.
var List = []Migration{
	{1, "schema_version bookkeeping table", migrateSchemaVersionTable},
	{2, "event log", migrateEvents},
	{3, "agents and messaging", migrateMessaging},
	{4, "file reservations", migrateReservations},
	{5, "cells, dependencies, labels, comments", migrateCells},
	{6, "blocked-cell cache", migrateBlockedCache},
	{7, "semantic memory + full-text shadow index", migrateMemory},
	{8, "dirty-cell export tracking", migrateExportTracking},
	{9, "composite performance indexes", migrateCompositeIndexes},
}

// Run applies every migration whose version is not yet recorded in
// schema_version, inside a single transaction: all-or-nothing, per
// spec §4.2. A failure partway through aborts the entire run — no
// partially-applied schema is ever committed.
func Run(ctx context.Context, a adapter.Adapter) error {
	// schema_version itself must exist before we can even ask what's
	// applied, so it is bootstrapped outside the main transaction, with
	// the same CREATE TABLE IF NOT EXISTS idempotency every other
	// migration uses.
	if _, err := a.Exec(ctx, schemaVersionDDL(a.Dialect())); err != nil {
		return kerrors.Wrap(kerrors.Fatal, "bootstrap schema_version table", err)
	}

	return a.Transaction(ctx, func(tx adapter.Tx) error {
		applied, err := appliedVersions(ctx, tx)
		if err != nil {
			return kerrors.Wrap(kerrors.Fatal, "read applied migrations", err)
		}

		seen := map[int]bool{}
		for _, m := range List {
			if seen[m.Version] {
				return kerrors.New(kerrors.Fatal, "duplicate migration version").
					WithDetails(map[string]any{"version": m.Version})
			}
			seen[m.Version] = true

			if applied[m.Version] {
				continue
			}
			if err := m.Up(ctx, tx, a.Dialect()); err != nil {
				return kerrors.Wrap(kerrors.Fatal, "apply migration "+m.Description, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_version (version, description) VALUES (?, ?)`,
				m.Version, m.Description,
			); err != nil {
				return kerrors.Wrap(kerrors.Fatal, "record migration version", err)
			}
		}
		return nil
	})
}

func appliedVersions(ctx context.Context, tx adapter.Tx) (map[int]bool, error) {
	rows, err := tx.Query(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(rows))
	for _, r := range rows {
		switch v := r["version"].(type) {
		case int64:
			out[int(v)] = true
		case int32:
			out[int(v)] = true
		case int:
			out[v] = true
		}
	}
	return out, nil
}

func schemaVersionDDL(d adapter.Dialect) string {
	if d == adapter.DialectPostgres {
		return `CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
}

func migrateSchemaVersionTable(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	_, err := tx.Exec(ctx, schemaVersionDDL(d))
	return err
}
