package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateMemory creates the semantic-memory table plus its full-text
// shadow index: `F32_BLOB(1024)` + FTS5 virtual table with mirroring
// triggers for SQLite (the teacher's own FTS pattern, see
// internal/queries/search.go's `sessions_fts`), or `vector(1024)` + a
// GIN index over to_tsvector for Postgres.
func migrateMemory(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)
	vectorType := "BLOB" // documented as F32_BLOB(1024) logically; SQLite has no fixed-width blob type
	if d == adapter.DialectPostgres {
		vectorType = "vector(1024)"
	}

	memory := `CREATE TABLE IF NOT EXISTS memory (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		collection TEXT NOT NULL DEFAULT 'default',
		created_at ` + ts + ` NOT NULL,
		confidence REAL NOT NULL DEFAULT 0.7,
		embedding ` + vectorType + ` NOT NULL
	)`
	if _, err := tx.Exec(ctx, memory); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_memory_collection ON memory(collection)`); err != nil {
		return err
	}

	if d == adapter.DialectPostgres {
		if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_memory_embedding_hnsw
			ON memory USING hnsw (embedding vector_cosine_ops)`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_memory_fts
			ON memory USING gin (to_tsvector('english', content))`)
		return err
	}

	// FTS5 shadow table + triggers keeping it in sync with memory.content,
	// the same shape as the teacher's sessions_fts mirror.
	if _, err := tx.Exec(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
		content, content='memory', content_rowid='rowid'
	)`); err != nil {
		return err
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS memory_ai AFTER INSERT ON memory BEGIN
			INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_ad AFTER DELETE ON memory BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_au AFTER UPDATE ON memory BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, t := range triggers {
		if _, err := tx.Exec(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
