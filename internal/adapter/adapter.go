// Package adapter provides a uniform query/exec/transaction surface over
// the kernel's two storage backends (embedded Postgres-compatible via
// pgx, embedded SQLite-compatible via the teacher's own ncruces/go-sqlite3
// driver). Call sites elsewhere in the kernel write SQL with "?"
// placeholders only; the adapter rebinds for Postgres internally so no
// call site ever branches on which backend is active.
package adapter

import (
	"context"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// Dialect names the two supported backends.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Row is a single result row keyed by column name. Both adapters turn
// time.Time values into RFC3339Nano strings; no other normalisation is
// done, so JSON kept in a TEXT column arrives as a string and the
// caller decodes it.
type Row map[string]any

// Querier is the read-side surface shared by Adapter and Tx.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Execer is the write-side surface shared by Adapter and Tx.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Tx is the subset of Adapter available inside Transaction's callback.
// It carries EncodeVector/DecodeVector too: projections.applyMemoryStored
// decodes the dialect-neutral embedding carried on the event payload and
// re-encodes it into this backend's column representation, all inside
// the same transaction as the event insert.
type Tx interface {
	Querier
	Execer
	EncodeVector(v []float32) (any, error)
	DecodeVector(raw any) ([]float32, error)
}

// Adapter is the narrow storage surface every component in the kernel is
// built against. Never branch on Dialect() outside this package and the
// schema package's DDL.
type Adapter interface {
	Querier
	Execer

	// Transaction runs fn inside a single database transaction. All-or-
	// nothing: any error returned from fn rolls back; a rollback failure
	// after a caller error surfaces as a kerrors.Composite.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	// EncodeVector/DecodeVector convert between a 1024-D float32 embedding
	// and whatever column representation this backend uses (a float32
	// blob for SQLite, a pgvector literal for Postgres).
	EncodeVector(v []float32) (any, error)
	DecodeVector(raw any) ([]float32, error)

	// FTSSearch runs a full-text query against `table`'s shadow FTS index
	// and returns rows with a normalised "rank" column (higher is
	// better), already limited and ordered.
	FTSSearch(ctx context.Context, table, textColumn, query string, limit int) ([]Row, error)

	// VectorSearch ranks `table` by cosine distance between `vectorCol`
	// and query, restricted to `where` (a caller-built "col = ? AND ..."
	// fragment using args, or "" for none), returning rows with a
	// normalised "score" column (1 - cosine_distance, higher is better)
	// already limited and ordered descending by score.
	VectorSearch(ctx context.Context, table, vectorCol string, query []float32, where string, args []any, limit int) ([]Row, error)

	Dialect() Dialect
	Close() error
}

// VectorDimension is the only embedding width the kernel accepts (spec §3).
const VectorDimension = 1024

func checkVectorDimension(v []float32) error {
	if len(v) != VectorDimension {
		return kerrors.New(kerrors.Invalid, "embedding dimension mismatch").WithDetails(map[string]any{
			"expected": VectorDimension,
			"actual":   len(v),
		})
	}
	return nil
}
