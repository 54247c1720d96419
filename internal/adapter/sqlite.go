package adapter

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// SQLiteAdapter is storage Variant B: the teacher's own non-cgo
// ncruces/go-sqlite3 driver, FTS5 virtual tables, and fixed-width
// float32-blob vector columns (no native vector index — cosine search
// is a linear application-side scan, see VectorSearch).
type SQLiteAdapter struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed database file.
// Mirrors the teacher's own New(ctx, dbPath) in internal/storage/sqlite.
func OpenSQLite(ctx context.Context, path string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // single-writer file, same as the teacher's own pool sizing
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "enable WAL", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "enable foreign keys", err)
	}
	return &SQLiteAdapter{db: db}, nil
}

func (a *SQLiteAdapter) Dialect() Dialect { return DialectSQLite }
func (a *SQLiteAdapter) Close() error     { return a.db.Close() }

func (a *SQLiteAdapter) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLiteErr(err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

func (a *SQLiteAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Transient, "read rows affected", err)
	}
	return n, nil
}

func (a *SQLiteAdapter) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	// A plain BeginTx: the driver's default (deferred) BEGIN. OpenSQLite
	// caps the pool at one connection, so a second transaction in this
	// process waits for that connection rather than racing for the
	// write lock.
	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return kerrors.Wrap(kerrors.Transient, "begin transaction", err)
	}
	tx := &sqliteTx{tx: sqlTx}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return kerrors.Composite(err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return kerrors.Wrap(kerrors.Transient, "commit transaction", err)
	}
	return nil
}

type sqliteTx struct{ tx *sql.Tx }

func (t *sqliteTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLiteErr(err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Transient, "read rows affected", err)
	}
	return n, nil
}

// EncodeVector packs a 1024-D embedding as a little-endian float32 blob,
// the teacher's "F32_BLOB(1024)" column representation.
func (a *SQLiteAdapter) EncodeVector(v []float32) (any, error) { return encodeVectorSQLite(v) }
func (a *SQLiteAdapter) DecodeVector(raw any) ([]float32, error) { return decodeVectorSQLite(raw) }

// sqliteTx exposes the same pure encode/decode so projections can
// translate a payload-carried embedding into this dialect's column
// representation without reaching back out to the top-level adapter.
func (t *sqliteTx) EncodeVector(v []float32) (any, error)    { return encodeVectorSQLite(v) }
func (t *sqliteTx) DecodeVector(raw any) ([]float32, error) { return decodeVectorSQLite(raw) }

func encodeVectorSQLite(v []float32) (any, error) {
	if err := checkVectorDimension(v); err != nil {
		return nil, err
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

func decodeVectorSQLite(raw any) ([]float32, error) {
	buf, ok := raw.([]byte)
	if !ok {
		return nil, kerrors.New(kerrors.Corruption, "vector blob has unexpected Go type")
	}
	if len(buf)%4 != 0 {
		return nil, kerrors.New(kerrors.Corruption, "vector blob length is not a multiple of 4")
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

// FTSSearch runs an FTS5 MATCH query against `<table>_fts`, the shadow
// virtual table schema.go keeps in sync via insert/update/delete
// triggers, ranked by bm25 (lower is better in SQLite's FTS5, so the
// normalised "rank" column here is the negation — higher is better,
// matching the adapter contract). The join is always against t's own
// hidden rowid: schema.go declares every FTS5 shadow table with
// content_rowid='rowid', never against a caller's TEXT primary key,
// which FTS5's integer rowid can never equal.
func (a *SQLiteAdapter) FTSSearch(ctx context.Context, table, textColumn, query string, limit int) ([]Row, error) {
	ftsTable := table + "_fts"
	q := fmt.Sprintf(`
		SELECT t.*, -bm25(%s) AS rank
		FROM %s f
		JOIN %s t ON t.rowid = f.rowid
		WHERE %s MATCH ?
		ORDER BY bm25(%s)
		LIMIT ?
	`, ftsTable, ftsTable, table, ftsTable, ftsTable)
	return a.Query(ctx, q, query, limit)
}

// VectorSearch has no native index to lean on (F32_BLOB is a plain
// column), so it pulls every row matching `where`, decodes its vector,
// and ranks by cosine similarity in process. Fine at the scale a single
// embedded SQLite file is expected to hold; Postgres's VectorSearch
// delegates to pgvector's HNSW index instead.
func (a *SQLiteAdapter) VectorSearch(ctx context.Context, table, vectorCol string, query []float32, where string, args []any, limit int) ([]Row, error) {
	q := fmt.Sprintf(`SELECT * FROM %s`, table)
	if where != "" {
		q += " WHERE " + where
	}
	rows, err := a.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	type scored struct {
		row   Row
		score float32
	}
	out := make([]scored, 0, len(rows))
	for _, r := range rows {
		raw, ok := r[vectorCol]
		if !ok {
			continue
		}
		vec, err := a.DecodeVector(raw)
		if err != nil {
			continue
		}
		out = append(out, scored{row: r, score: cosineSimilarity(query, vec)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]Row, len(out))
	for i, s := range out {
		row := make(Row, len(s.row)+1)
		for k, v := range s.row {
			row[k] = v
		}
		row["score"] = s.score
		result[i] = row
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "read columns", err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, kerrors.Wrap(kerrors.Transient, "scan row", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeSQLiteValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "iterate rows", err)
	}
	return out, nil
}

// normalizeSQLiteValue coerces driver-returned types (notably
// time.Time for DATETIME columns) into the normalised forms spec §4.1
// requires: timestamps as parseable strings or numbers.
func normalizeSQLiteValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func translateSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case err == sql.ErrNoRows:
		return kerrors.Wrap(kerrors.NotFound, "no matching row", err)
	case strings.Contains(msg, "UNIQUE constraint"):
		return kerrors.Wrap(kerrors.Conflict, "unique constraint violated", err)
	case strings.Contains(msg, "locked") || strings.Contains(msg, "busy"):
		return kerrors.Wrap(kerrors.Transient, "database locked", err)
	case strings.Contains(msg, "CHECK constraint") || strings.Contains(msg, "NOT NULL"):
		return kerrors.Wrap(kerrors.Invalid, "constraint violated", err)
	default:
		return kerrors.Wrap(kerrors.Transient, "sqlite error", err)
	}
}
