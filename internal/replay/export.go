package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// jsonlCell is the canonical JSONL line shape for one cell (spec's
// "JSONL format (cells)"): ExportDirty writes timestamps as integer
// milliseconds; ImportJSONL does not read them (see ImportJSONL).
type jsonlCell struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	IssueType    string `json:"issue_type"`
	Priority     int    `json:"priority"`
	ParentID     string `json:"parent_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	ClosedAt     *int64 `json:"closed_at,omitempty"`
	ClosedReason string `json:"closed_reason,omitempty"`
}

// ExportDirty writes one JSONL line per dirty cell to path (truncating
// and rewriting it each call, since the export is always a full
// materialisation of the current dirty set, not a diff),
// then clears the dirty flag for every cell it successfully wrote.
func (s *Service) ExportDirty(ctx context.Context, path string) (int, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT cell_id FROM dirty_cells ORDER BY marked_at ASC`)
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Transient, "query dirty cells", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, kerrors.Wrap(kerrors.Unavailable, "create export directory", err)
	}
	f, err := os.Create(path) // #nosec G304 - path is operator-configured, not request input
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Unavailable, "open export file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	written := make([]string, 0, len(rows))
	for _, r := range rows {
		cellID, _ := r["cell_id"].(string)
		cellRows, err := s.Kernel.Adapter.Query(ctx, `SELECT id, title, description, status, issue_type, priority, parent_id, created_at, closed_at, closed_reason
			FROM cells WHERE id = ? AND deleted_at IS NULL`, cellID)
		if err != nil {
			return len(written), kerrors.Wrap(kerrors.Transient, "query cell for export", err)
		}
		if len(cellRows) == 0 {
			written = append(written, cellID) // tombstoned since marked dirty; drop from the queue without emitting a line
			continue
		}
		line := cellRowToJSONL(cellRows[0])
		data, err := json.Marshal(line)
		if err != nil {
			return len(written), kerrors.Wrap(kerrors.Invalid, "marshal cell export line", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return len(written), kerrors.Wrap(kerrors.Unavailable, "write export line", err)
		}
		written = append(written, cellID)
	}
	if err := w.Flush(); err != nil {
		return len(written), kerrors.Wrap(kerrors.Unavailable, "flush export file", err)
	}

	for _, id := range written {
		if _, err := s.Kernel.Adapter.Exec(ctx, `DELETE FROM dirty_cells WHERE cell_id = ?`, id); err != nil {
			return len(written), kerrors.Wrap(kerrors.Transient, "clear dirty cell", err)
		}
	}
	return len(written), nil
}

// ImportJSONL reads one JSON object per line from path and appends a
// bead_created event for each id not already present in cells (in any
// project, since the id is the table's primary key). The new cell takes
// id, title, description, issue type, priority and parent from the line;
// status, created_at and closed_at are not read, so the cell starts open
// with the import time as its timestamps.
func (s *Service) ImportJSONL(ctx context.Context, projectKey, path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 - path is operator-configured, not request input
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, kerrors.Wrap(kerrors.Unavailable, "open import file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	imported := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		id, _ := raw["id"].(string)
		if id == "" {
			continue
		}
		existing, err := s.Kernel.Adapter.Query(ctx, `SELECT id FROM cells WHERE id = ?`, id)
		if err != nil {
			return imported, kerrors.Wrap(kerrors.Transient, "check existing cell", err)
		}
		if len(existing) > 0 {
			continue
		}
		if err := s.appendImportedCell(ctx, projectKey, raw); err != nil {
			continue
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, kerrors.Wrap(kerrors.Transient, "scan import file", err)
	}
	return imported, nil
}

// appendImportedCell emits bead_created preserving the JSONL line's own
// id, bypassing cells.Service.CreateBead (which always mints a fresh
// id) since import is specifically restoring externally-assigned ids.
func (s *Service) appendImportedCell(ctx context.Context, projectKey string, raw map[string]any) error {
	priority := int(i64Of(raw["priority"]))
	if priority == 0 {
		priority = 2
	}
	payload := events.BeadCreatedPayload{
		ID:          strOf(raw["id"]),
		Title:       strOf(raw["title"]),
		Description: strOf(raw["description"]),
		IssueType:   orDefault(strOf(raw["issue_type"]), "task"),
		Priority:    priority,
		ParentID:    strOf(raw["parent_id"]),
	}
	_, err := s.Kernel.Append(ctx, events.BeadCreated, projectKey, payload)
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func cellRowToJSONL(r map[string]any) jsonlCell {
	j := jsonlCell{
		ID:           strOf(r["id"]),
		Title:        strOf(r["title"]),
		Description:  strOf(r["description"]),
		Status:       strOf(r["status"]),
		IssueType:    strOf(r["issue_type"]),
		Priority:     int(i64Of(r["priority"])),
		ParentID:     strOf(r["parent_id"]),
		CreatedAt:    i64Of(r["created_at"]),
		ClosedReason: strOf(r["closed_reason"]),
	}
	if r["closed_at"] != nil {
		v := i64Of(r["closed_at"])
		j.ClosedAt = &v
	}
	return j
}

func strOf(v any) string {
	s, _ := v.(string)
	return s
}

// i64Of coerces a value that may arrive as an int64 (SQLite integer
// columns), a float64 (JSON numbers decoded by json.Unmarshal), or a
// numeric string, matching the source format's "coerce via Number(x)
// before constructing dates" tolerance.
func i64Of(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}
