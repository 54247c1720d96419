package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// PostgresAdapter is storage Variant A: a true `vector(1024)` column with
// an HNSW index (via the pgvector extension), GIN full-text indexes, and
// "$N" positional parameters reached through github.com/jackc/pgx/v5.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to a Postgres-compatible database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresAdapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "connect to postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, kerrors.Wrap(kerrors.Unavailable, "ping postgres", err)
	}
	return &PostgresAdapter{pool: pool}, nil
}

func (a *PostgresAdapter) Dialect() Dialect { return DialectPostgres }

func (a *PostgresAdapter) Close() error {
	a.pool.Close()
	return nil
}

func (a *PostgresAdapter) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := a.pool.Query(ctx, rebindPostgres(query), args...)
	if err != nil {
		return nil, translatePostgresErr(err)
	}
	defer rows.Close()
	return scanPgxRows(rows)
}

func (a *PostgresAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := a.pool.Exec(ctx, rebindPostgres(query), args...)
	if err != nil {
		return 0, translatePostgresErr(err)
	}
	return tag.RowsAffected(), nil
}

func (a *PostgresAdapter) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	pgTx, err := a.pool.Begin(ctx)
	if err != nil {
		return kerrors.Wrap(kerrors.Transient, "begin transaction", err)
	}
	tx := &postgresTx{tx: pgTx}
	if err := fn(tx); err != nil {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return kerrors.Composite(err, rbErr)
		}
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return kerrors.Wrap(kerrors.Transient, "commit transaction", err)
	}
	return nil
}

type postgresTx struct{ tx pgx.Tx }

func (t *postgresTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.tx.Query(ctx, rebindPostgres(query), args...)
	if err != nil {
		return nil, translatePostgresErr(err)
	}
	defer rows.Close()
	return scanPgxRows(rows)
}

func (t *postgresTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, rebindPostgres(query), args...)
	if err != nil {
		return 0, translatePostgresErr(err)
	}
	return tag.RowsAffected(), nil
}

// EncodeVector renders the embedding as a pgvector text literal, e.g.
// "[0.1,0.2,...]", which pgx sends as a plain string parameter; the
// `vector(1024)` column performs the implicit cast.
func (a *PostgresAdapter) EncodeVector(v []float32) (any, error) { return encodeVectorPostgres(v) }
func (a *PostgresAdapter) DecodeVector(raw any) ([]float32, error) {
	return decodeVectorPostgres(raw)
}

// postgresTx exposes the same pure encode/decode so projections can
// translate a payload-carried embedding into this dialect's column
// representation without reaching back out to the top-level adapter.
func (t *postgresTx) EncodeVector(v []float32) (any, error) { return encodeVectorPostgres(v) }
func (t *postgresTx) DecodeVector(raw any) ([]float32, error) {
	return decodeVectorPostgres(raw)
}

func encodeVectorPostgres(v []float32) (any, error) {
	if err := checkVectorDimension(v); err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

func decodeVectorPostgres(raw any) ([]float32, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, kerrors.New(kerrors.Corruption, "vector column has unexpected Go type")
	}
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, kerrors.New(kerrors.Corruption, "empty vector literal")
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.Corruption, "parse vector component", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// FTSSearch queries a GIN index over to_tsvector('english', textColumn),
// ranked by ts_rank (higher is better, matching the adapter contract
// directly — no sign flip needed, unlike the SQLite FTS5/bm25 path).
func (a *PostgresAdapter) FTSSearch(ctx context.Context, table, textColumn, query string, limit int) ([]Row, error) {
	q := fmt.Sprintf(`
		SELECT *, ts_rank(to_tsvector('english', %s), plainto_tsquery('english', ?)) AS rank
		FROM %s
		WHERE to_tsvector('english', %s) @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC
		LIMIT ?
	`, textColumn, table, textColumn)
	return a.Query(ctx, q, query, query, limit)
}

// VectorSearch ranks `table` by pgvector's native cosine-distance
// operator, letting the HNSW index (schema.migrateMemory) do the work
// instead of pulling every row back for an in-process comparison.
func (a *PostgresAdapter) VectorSearch(ctx context.Context, table, vectorCol string, query []float32, where string, args []any, limit int) ([]Row, error) {
	encoded, err := a.EncodeVector(query)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT *, 1 - (%s <=> ?) AS score FROM %s`, vectorCol, table)
	fullArgs := append([]any{encoded}, args...)
	if where != "" {
		q += " WHERE " + where
	}
	q += fmt.Sprintf(` ORDER BY %s <=> ? LIMIT ?`, vectorCol)
	fullArgs = append(fullArgs, encoded, limit)
	return a.Query(ctx, q, fullArgs...)
}

func scanPgxRows(rows pgx.Rows) ([]Row, error) {
	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, kerrors.Wrap(kerrors.Transient, "scan row", err)
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = normalizePostgresValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "iterate rows", err)
	}
	return out, nil
}

func normalizePostgresValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func translatePostgresErr(err error) error {
	if err == nil {
		return nil
	}
	if err == pgx.ErrNoRows {
		return kerrors.Wrap(kerrors.NotFound, "no matching row", err)
	}
	var pgErr *pgconn.PgError
	if ok := asPgError(err, &pgErr); ok {
		switch pgErr.Code {
		case "23505": // unique_violation
			return kerrors.Wrap(kerrors.Conflict, "unique constraint violated", err)
		case "23514", "23502": // check_violation, not_null_violation
			return kerrors.Wrap(kerrors.Invalid, "constraint violated", err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return kerrors.Wrap(kerrors.Transient, "transaction conflict", err)
		}
	}
	return kerrors.Wrap(kerrors.Transient, "postgres error", err)
}

func asPgError(err error, target **pgconn.PgError) bool {
	type pgErrWrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if pe, ok := e.(*pgconn.PgError); ok {
			*target = pe
			return true
		}
		w, ok := e.(pgErrWrapper)
		if !ok {
			return false
		}
		e = w.Unwrap()
	}
	return false
}
