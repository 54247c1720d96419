package cells

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// ResolveShortID expands a caller-supplied id, which may be the full
// stored id or any substring unique to exactly one cell in the project,
// into the full id. An id that matches zero cells fails NotFound; one
// that matches more than one fails Conflict rather than silently
// picking the first match.
func (s *Service) ResolveShortID(ctx context.Context, projectKey, id string) (string, error) {
	if id == "" {
		return "", kerrors.New(kerrors.Invalid, "cell id is required")
	}
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT id FROM cells WHERE project_key = ? AND id = ?`, projectKey, id)
	if err != nil {
		return "", kerrors.Wrap(kerrors.Transient, "resolve cell id", err)
	}
	if len(rows) == 1 {
		return id, nil
	}

	rows, err = s.Kernel.Adapter.Query(ctx, `SELECT id FROM cells WHERE project_key = ?`, projectKey)
	if err != nil {
		return "", kerrors.Wrap(kerrors.Transient, "resolve cell id", err)
	}
	var matches []string
	for _, r := range rows {
		full, _ := r["id"].(string)
		if strings.Contains(full, id) {
			matches = append(matches, full)
		}
	}
	switch len(matches) {
	case 0:
		all := make([]string, 0, len(rows))
		for _, r := range rows {
			if full, ok := r["id"].(string); ok {
				all = append(all, full)
			}
		}
		err := kerrors.New(kerrors.NotFound, "no cell matches id: "+id)
		if suggestions := fuzzy.RankFindFold(id, all); len(suggestions) > 0 {
			sort.Sort(suggestions)
			limit := len(suggestions)
			if limit > 5 {
				limit = 5
			}
			named := make([]string, 0, limit)
			for _, s := range suggestions[:limit] {
				named = append(named, s.Target)
			}
			err = err.WithDetails(map[string]any{"did_you_mean": named})
		}
		return "", err
	case 1:
		return matches[0], nil
	default:
		return "", kerrors.New(kerrors.Conflict, "id is ambiguous, matches multiple cells").
			WithDetails(map[string]any{"matches": matches})
	}
}

// DirtyCell is one entry in the export queue (internal/replay drains it).
type DirtyCell struct {
	CellID   string `json:"cell_id"`
	MarkedAt int64  `json:"marked_at"`
}

// GetDirtyBeads lists cells mutated since the last ClearDirty.
func (s *Service) GetDirtyBeads(ctx context.Context) ([]DirtyCell, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT cell_id, marked_at FROM dirty_cells ORDER BY marked_at ASC`)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query dirty cells", err)
	}
	out := make([]DirtyCell, 0, len(rows))
	for _, r := range rows {
		out = append(out, DirtyCell{CellID: str(r["cell_id"]), MarkedAt: i64(r["marked_at"])})
	}
	return out, nil
}

// ClearDirty removes cellIDs from the dirty set, called after a
// successful JSONL export.
func (s *Service) ClearDirty(ctx context.Context, cellIDs []string) error {
	for _, id := range cellIDs {
		if _, err := s.Kernel.Adapter.Exec(ctx, `DELETE FROM dirty_cells WHERE cell_id = ?`, id); err != nil {
			return kerrors.Wrap(kerrors.Transient, "clear dirty cell", err)
		}
	}
	return nil
}
