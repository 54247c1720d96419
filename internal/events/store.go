package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// InsertEvent appends e to the log inside tx and returns it with its
// assigned sequence. RETURNING works identically against both backends
// (SQLite 3.35+ and Postgres both support it), so this is the one place
// the store needs a result back from a write instead of just a row count.
func InsertEvent(ctx context.Context, tx adapter.Tx, e Event) (Event, error) {
	rows, err := tx.Query(ctx, `INSERT INTO events (type, project_key, timestamp, data)
		VALUES (?, ?, ?, ?) RETURNING sequence`,
		string(e.Type), e.ProjectKey, e.Timestamp, string(e.Data))
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.Transient, "insert event", err)
	}
	if len(rows) != 1 {
		return Event{}, kerrors.New(kerrors.Corruption, "insert event returned no sequence")
	}
	seq, ok := toInt64(rows[0]["sequence"])
	if !ok {
		return Event{}, kerrors.New(kerrors.Corruption, "event sequence has unexpected type")
	}
	e.Sequence = seq
	return e, nil
}

// AppendEvents inserts each event in order, returning the same events with
// sequences assigned. Callers that need insert+projection atomicity wrap
// this in a single tx.Transaction (see internal/kernel).
func AppendEvents(ctx context.Context, tx adapter.Tx, es []Event) ([]Event, error) {
	out := make([]Event, 0, len(es))
	for _, e := range es {
		inserted, err := InsertEvent(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

// Filter narrows ReadEvents. AfterSequence is strict (>), matching the
// durable stream's offset semantics in spec §4.10: passing the last seen
// sequence never replays it.
type Filter struct {
	ProjectKey    string
	Types         []Type
	AfterSequence int64
	FromTimestamp int64 // 0 means unbounded
	ToTimestamp   int64 // 0 means unbounded
	Limit         int   // 0 means unbounded
	Offset        int
}

// ReadEvents returns events matching f in ascending sequence order.
func ReadEvents(ctx context.Context, q adapter.Querier, f Filter) ([]Event, error) {
	var where []string
	var args []any

	if f.ProjectKey != "" {
		where = append(where, "project_key = ?")
		args = append(args, f.ProjectKey)
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.AfterSequence > 0 {
		where = append(where, "sequence > ?")
		args = append(args, f.AfterSequence)
	}
	if f.FromTimestamp > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, f.FromTimestamp)
	}
	if f.ToTimestamp > 0 {
		where = append(where, "timestamp <= ?")
		args = append(args, f.ToTimestamp)
	}

	query := "SELECT sequence, type, project_key, timestamp, data FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sequence ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "read events", err)
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		e, err := rowToEvent(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// LatestSequence returns the highest assigned sequence for projectKey, or
// 0 if the project has no events yet.
func LatestSequence(ctx context.Context, q adapter.Querier, projectKey string) (int64, error) {
	rows, err := q.Query(ctx, `SELECT COALESCE(MAX(sequence), 0) AS seq FROM events WHERE project_key = ?`, projectKey)
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Transient, "read latest sequence", err)
	}
	if len(rows) != 1 {
		return 0, nil
	}
	seq, ok := toInt64(rows[0]["seq"])
	if !ok {
		return 0, kerrors.New(kerrors.Corruption, "latest sequence has unexpected type")
	}
	return seq, nil
}

func rowToEvent(r adapter.Row) (Event, error) {
	seq, ok := toInt64(r["sequence"])
	if !ok {
		return Event{}, kerrors.New(kerrors.Corruption, "event sequence has unexpected type")
	}
	ts, ok := toInt64(r["timestamp"])
	if !ok {
		return Event{}, kerrors.New(kerrors.Corruption, "event timestamp has unexpected type")
	}
	typ, _ := r["type"].(string)
	projectKey, _ := r["project_key"].(string)

	var data []byte
	switch v := r["data"].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return Event{}, kerrors.New(kerrors.Corruption, "event data has unexpected type")
	}

	return Event{
		Sequence:   seq,
		Type:       Type(typ),
		ProjectKey: projectKey,
		Timestamp:  ts,
		Data:       data,
	}, nil
}

// toInt64 accepts any of the integer-ish types the two adapters' row
// scanners can hand back for a numeric column.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
