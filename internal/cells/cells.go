// Package cells implements C7: the work-item graph — cells, typed
// dependency edges, labels, comments, epic hierarchy, blocked-state, and
// the dirty-set JSONL export queue feeds on (internal/replay).
package cells

import (
	"context"
	"time"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/ids"
	"github.com/hiveforge/kernel/internal/kerrors"
	"github.com/hiveforge/kernel/internal/kernel"
)

// Service is the cell-graph surface. IDPrefix and IDLength control
// generated cell ids (ids.NewCellID); zero values fall back to its own
// defaults ("cell", 6).
type Service struct {
	Kernel   *kernel.Kernel
	IDPrefix string
	IDLength int
}

func New(k *kernel.Kernel, idPrefix string, idLength int) *Service {
	return &Service{Kernel: k, IDPrefix: idPrefix, IDLength: idLength}
}

// Cell is the read-side view of one work item.
type Cell struct {
	ID           string  `json:"id"`
	ProjectKey   string  `json:"project_key"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	IssueType    string  `json:"issue_type"`
	Status       string  `json:"status"`
	Priority     int     `json:"priority"`
	ParentID     string  `json:"parent_id,omitempty"`
	Assignee     string  `json:"assignee,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
	ClosedAt     *int64  `json:"closed_at,omitempty"`
	ClosedReason string  `json:"closed_reason,omitempty"`
	DeletedAt    *int64  `json:"deleted_at,omitempty"`
	DeletedBy    string  `json:"deleted_by,omitempty"`
	DeleteReason string  `json:"delete_reason,omitempty"`
}

// CreateArgs are the caller-supplied fields for CreateBead.
type CreateArgs struct {
	Title       string
	Description string
	IssueType   string
	Priority    int
	ParentID    string
	Assignee    string
}

// CreateBead allocates a new cell id and appends bead_created.
func (s *Service) CreateBead(ctx context.Context, projectKey string, args CreateArgs) (*Cell, error) {
	if args.Title == "" {
		return nil, kerrors.New(kerrors.Invalid, "title is required")
	}
	if args.IssueType == "" {
		args.IssueType = "task"
	}
	if args.Priority == 0 {
		args.Priority = 2
	}
	id := ids.NewCellID(projectKey, s.IDPrefix, time.Now(), randNonce(), s.IDLength)
	payload := events.BeadCreatedPayload{
		ID:          id,
		Title:       args.Title,
		Description: args.Description,
		IssueType:   args.IssueType,
		Priority:    args.Priority,
		ParentID:    args.ParentID,
		Assignee:    args.Assignee,
	}
	if _, err := s.Kernel.Append(ctx, events.BeadCreated, projectKey, payload); err != nil {
		return nil, err
	}
	return s.GetBead(ctx, projectKey, id)
}

// GetBead resolves id (exact or unique short-id substring) and returns
// the cell, excluding soft-deleted rows unless includeDeleted is set by
// the caller through QueryBeads instead.
func (s *Service) GetBead(ctx context.Context, projectKey, id string) (*Cell, error) {
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.Kernel.Adapter.Query(ctx, cellSelectColumns+` FROM cells c WHERE c.project_key = ? AND c.id = ? AND c.deleted_at IS NULL`, projectKey, resolved)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query cell", err)
	}
	if len(rows) == 0 {
		return nil, kerrors.New(kerrors.NotFound, "cell not found: "+id)
	}
	c := rowToCell(rows[0])
	return &c, nil
}

// QueryFilter narrows QueryBeads.
type QueryFilter struct {
	Status         string
	Assignee       string
	ParentID       string
	Label          string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// QueryBeads lists cells matching filter, newest first.
func (s *Service) QueryBeads(ctx context.Context, projectKey string, filter QueryFilter) ([]Cell, error) {
	where := []string{"c.project_key = ?"}
	args := []any{projectKey}
	if !filter.IncludeDeleted {
		where = append(where, "c.deleted_at IS NULL")
	}
	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Assignee != "" {
		where = append(where, "c.assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.ParentID != "" {
		where = append(where, "c.parent_id = ?")
		args = append(args, filter.ParentID)
	}
	query := cellSelectColumns + ` FROM cells c`
	if filter.Label != "" {
		query += ` JOIN cell_labels l ON l.cell_id = c.id AND l.label = ?`
		args = append([]any{filter.Label}, args...)
	}
	query += ` WHERE ` + joinAnd(where) + ` ORDER BY c.created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}
	rows, err := s.Kernel.Adapter.Query(ctx, query, args...)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query cells", err)
	}
	out := make([]Cell, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToCell(r))
	}
	return out, nil
}

// UpdateBead applies a column-level partial update. Only title,
// description, priority, and assignee are mutable this way — status
// transitions go through ChangeBeadStatus/CloseBead/ReopenBead so their
// invariants (blocked-cache rebuild, closed_at bookkeeping) always run.
func (s *Service) UpdateBead(ctx context.Context, projectKey, id string, updates map[string]any) error {
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return err
	}
	clean := map[string]any{}
	for k, v := range updates {
		switch k {
		case "title", "description", "priority", "assignee":
			clean[k] = v
		default:
			return kerrors.New(kerrors.Invalid, "cannot update column: "+k)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	_, err = s.Kernel.Append(ctx, events.BeadUpdated, projectKey, events.BeadUpdatedPayload{ID: resolved, Updates: clean})
	return err
}

// validTransition enforces spec §4.4: any status to any except
// tombstone, which no status change may set (DeleteBead marks a cell
// deleted through deleted_at and leaves its status as it was).
func validTransition(newStatus string) error {
	if newStatus == "tombstone" {
		return kerrors.New(kerrors.Invalid, "tombstone is only set by deleteBead")
	}
	switch newStatus {
	case "open", "in_progress", "blocked", "closed":
		return nil
	default:
		return kerrors.New(kerrors.Invalid, "unknown status: "+newStatus)
	}
}

// ChangeBeadStatus moves id to newStatus, validating the transition.
func (s *Service) ChangeBeadStatus(ctx context.Context, projectKey, id, newStatus string) error {
	if err := validTransition(newStatus); err != nil {
		return err
	}
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return err
	}
	current, err := s.GetBead(ctx, projectKey, resolved)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadStatusChanged, projectKey, events.BeadStatusChangedPayload{
		ID: resolved, OldStatus: current.Status, NewStatus: newStatus,
	})
	return err
}

// CloseBead sets status=closed, closed_at, closed_reason.
func (s *Service) CloseBead(ctx context.Context, projectKey, id, reason string) error {
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadClosed, projectKey, events.BeadClosedPayload{ID: resolved, Reason: reason})
	return err
}

// ReopenBead sets status back to open and clears closed bookkeeping.
func (s *Service) ReopenBead(ctx context.Context, projectKey, id string) error {
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadReopened, projectKey, events.BeadReopenedPayload{ID: resolved})
	return err
}

// DeleteBead soft-deletes id (status effectively "tombstone" to every
// query that doesn't pass IncludeDeleted).
func (s *Service) DeleteBead(ctx context.Context, projectKey, id, by, reason string) error {
	resolved, err := s.ResolveShortID(ctx, projectKey, id)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadDeleted, projectKey, events.BeadDeletedPayload{ID: resolved, By: by, Reason: reason})
	return err
}

const cellSelectColumns = `SELECT c.id, c.project_key, c.title, c.description, c.issue_type, c.status, c.priority,
	c.parent_id, c.assignee, c.created_at, c.updated_at, c.closed_at, c.closed_reason,
	c.deleted_at, c.deleted_by, c.delete_reason`

func rowToCell(r adapter.Row) Cell {
	c := Cell{
		ID:           str(r["id"]),
		ProjectKey:   str(r["project_key"]),
		Title:        str(r["title"]),
		Description:  str(r["description"]),
		IssueType:    str(r["issue_type"]),
		Status:       str(r["status"]),
		Priority:     int(i64(r["priority"])),
		ParentID:     str(r["parent_id"]),
		Assignee:     str(r["assignee"]),
		CreatedAt:    i64(r["created_at"]),
		UpdatedAt:    i64(r["updated_at"]),
		ClosedReason: str(r["closed_reason"]),
		DeletedBy:    str(r["deleted_by"]),
		DeleteReason: str(r["delete_reason"]),
	}
	if r["closed_at"] != nil {
		v := i64(r["closed_at"])
		c.ClosedAt = &v
	}
	if r["deleted_at"] != nil {
		v := i64(r["deleted_at"])
		c.DeletedAt = &v
	}
	return c
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func i64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
