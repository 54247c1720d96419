package cells

import (
	"context"
	"encoding/json"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/ids"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// Dependency is one typed edge in the cell graph.
type Dependency struct {
	CellID       string `json:"cell_id"`
	DependsOnID  string `json:"depends_on_id"`
	Relationship string `json:"relationship"`
	CreatedAt    int64  `json:"created_at"`
}

// AddDependency records that cellID depends on dependsOnID via
// relationship (default "blocks"), rejecting edges that would close a
// cycle among "blocks" edges.
func (s *Service) AddDependency(ctx context.Context, projectKey, cellID, dependsOnID, relationship string) error {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return err
	}
	dependsOnID, err = s.ResolveShortID(ctx, projectKey, dependsOnID)
	if err != nil {
		return err
	}
	if relationship == "" {
		relationship = "blocks"
	}
	if cellID == dependsOnID {
		return kerrors.New(kerrors.Invalid, "a cell cannot depend on itself")
	}
	if relationship == "blocks" {
		cyclic, err := s.wouldCycle(ctx, projectKey, cellID, dependsOnID)
		if err != nil {
			return err
		}
		if cyclic {
			return kerrors.New(kerrors.Conflict, "adding this dependency would create a cycle")
		}
	}
	_, err = s.Kernel.Append(ctx, events.BeadDependencyAdded, projectKey, events.BeadDependencyAddedPayload{
		CellID: cellID, DependsOnID: dependsOnID, Relationship: relationship,
	})
	return err
}

// RemoveDependency deletes the edge.
func (s *Service) RemoveDependency(ctx context.Context, projectKey, cellID, dependsOnID, relationship string) error {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return err
	}
	dependsOnID, err = s.ResolveShortID(ctx, projectKey, dependsOnID)
	if err != nil {
		return err
	}
	if relationship == "" {
		relationship = "blocks"
	}
	_, err = s.Kernel.Append(ctx, events.BeadDependencyRemoved, projectKey, events.BeadDependencyRemovedPayload{
		CellID: cellID, DependsOnID: dependsOnID, Relationship: relationship,
	})
	return err
}

// GetDependencies returns cellID's outgoing edges.
func (s *Service) GetDependencies(ctx context.Context, projectKey, cellID string) ([]Dependency, error) {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return nil, err
	}
	return s.queryEdges(ctx, "cell_id", cellID)
}

// GetDependents returns cells that depend on cellID.
func (s *Service) GetDependents(ctx context.Context, projectKey, cellID string) ([]Dependency, error) {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return nil, err
	}
	return s.queryEdges(ctx, "depends_on_id", cellID)
}

func (s *Service) queryEdges(ctx context.Context, col, id string) ([]Dependency, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT cell_id, depends_on_id, relationship, created_at FROM cell_dependencies WHERE `+col+` = ?`, id)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query dependencies", err)
	}
	out := make([]Dependency, 0, len(rows))
	for _, r := range rows {
		out = append(out, Dependency{
			CellID:       str(r["cell_id"]),
			DependsOnID:  str(r["depends_on_id"]),
			Relationship: str(r["relationship"]),
			CreatedAt:    i64(r["created_at"]),
		})
	}
	return out, nil
}

// IsBlocked reports whether cellID has a non-empty blocked_cache row or
// an active "blocks" dependency whose target is open/in_progress/blocked.
func (s *Service) IsBlocked(ctx context.Context, projectKey, cellID string) (bool, error) {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return false, err
	}
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT blocker_ids FROM blocked_cache WHERE cell_id = ?`, cellID)
	if err != nil {
		return false, kerrors.Wrap(kerrors.Transient, "query blocked cache", err)
	}
	if len(rows) > 0 {
		var ids []string
		if err := json.Unmarshal([]byte(str(rows[0]["blocker_ids"])), &ids); err != nil {
			return false, kerrors.Wrap(kerrors.Corruption, "decode blocked_cache", err)
		}
		if len(ids) > 0 {
			return true, nil
		}
	}
	live, err := s.Kernel.Adapter.Query(ctx, `SELECT d.depends_on_id FROM cell_dependencies d
		JOIN cells c ON c.id = d.depends_on_id
		WHERE d.cell_id = ? AND d.relationship = 'blocks' AND c.status IN ('open', 'in_progress', 'blocked') AND c.deleted_at IS NULL`, cellID)
	if err != nil {
		return false, kerrors.Wrap(kerrors.Transient, "query blockers", err)
	}
	return len(live) > 0, nil
}

// GetBlockers returns the open cells currently blocking cellID.
func (s *Service) GetBlockers(ctx context.Context, projectKey, cellID string) ([]Cell, error) {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT blocker_ids FROM blocked_cache WHERE cell_id = ?`, cellID)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query blocked cache", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var blockerIDs []string
	if err := json.Unmarshal([]byte(str(rows[0]["blocker_ids"])), &blockerIDs); err != nil {
		return nil, kerrors.Wrap(kerrors.Corruption, "decode blocked_cache", err)
	}
	out := make([]Cell, 0, len(blockerIDs))
	for _, id := range blockerIDs {
		c, err := s.GetBead(ctx, projectKey, id)
		if err != nil {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// wouldCycle reports whether adding cellID -> dependsOnID ("blocks")
// would create a cycle, by checking whether cellID is already
// transitively reachable from dependsOnID through existing "blocks"
// edges (a path back to cellID means the new edge closes a loop).
func (s *Service) wouldCycle(ctx context.Context, projectKey, cellID, dependsOnID string) (bool, error) {
	visited := map[string]bool{}
	var walk func(node string) (bool, error)
	walk = func(node string) (bool, error) {
		if node == cellID {
			return true, nil
		}
		if visited[node] {
			return false, nil
		}
		visited[node] = true
		rows, err := s.Kernel.Adapter.Query(ctx, `SELECT depends_on_id FROM cell_dependencies WHERE cell_id = ? AND relationship = 'blocks'`, node)
		if err != nil {
			return false, kerrors.Wrap(kerrors.Transient, "query dependencies", err)
		}
		for _, r := range rows {
			next := str(r["depends_on_id"])
			hit, err := walk(next)
			if err != nil {
				return false, err
			}
			if hit {
				return true, nil
			}
		}
		return false, nil
	}
	return walk(dependsOnID)
}

// DetectCycles scans every "blocks" edge in project and returns one
// cycle (as a cell-id slice) for each back edge the depth-first search
// meets, so a component with several loops can yield several cycles;
// the result is nil when the graph is acyclic.
func (s *Service) DetectCycles(ctx context.Context, projectKey string) ([][]string, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT cell_id, depends_on_id FROM cell_dependencies d
		JOIN cells c ON c.id = d.cell_id WHERE c.project_key = ? AND d.relationship = 'blocks'`, projectKey)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query dependency graph", err)
	}
	adjacency := map[string][]string{}
	for _, r := range rows {
		from := str(r["cell_id"])
		adjacency[from] = append(adjacency[from], str(r["depends_on_id"]))
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var cycles [][]string
	var stack []string

	var visit func(node string) error
	visit = func(node string) error {
		state[node] = visiting
		stack = append(stack, node)
		for _, next := range adjacency[node] {
			switch state[next] {
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			case visiting:
				cycle := cycleFromStack(stack, next)
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}
	for node := range adjacency {
		if state[node] == unvisited {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}
	return cycles, nil
}

func cycleFromStack(stack []string, start string) []string {
	for i, n := range stack {
		if n == start {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start}
}

// GetNextReadyBead returns the open, unblocked cell with the smallest
// priority value, tie-broken by created_at ascending.
func (s *Service) GetNextReadyBead(ctx context.Context, projectKey string) (*Cell, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, cellSelectColumns+` FROM cells c
		WHERE c.project_key = ? AND c.status = 'open' AND c.deleted_at IS NULL
		AND c.id NOT IN (SELECT cell_id FROM blocked_cache WHERE blocker_ids != '[]')
		ORDER BY c.priority ASC, c.created_at ASC LIMIT 1`, projectKey)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query next ready bead", err)
	}
	if len(rows) == 0 {
		return nil, kerrors.New(kerrors.NotFound, "no ready cell")
	}
	c := rowToCell(rows[0])
	return &c, nil
}

// GetInProgressBeads lists cells currently in_progress.
func (s *Service) GetInProgressBeads(ctx context.Context, projectKey string) ([]Cell, error) {
	return s.QueryBeads(ctx, projectKey, QueryFilter{Status: "in_progress"})
}

// GetBlockedBeads lists cells with a non-empty blocked_cache row.
func (s *Service) GetBlockedBeads(ctx context.Context, projectKey string) ([]Cell, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, cellSelectColumns+` FROM cells c
		JOIN blocked_cache b ON b.cell_id = c.id
		WHERE c.project_key = ? AND c.deleted_at IS NULL AND b.blocker_ids != '[]'
		ORDER BY c.priority ASC, c.created_at ASC`, projectKey)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query blocked cells", err)
	}
	out := make([]Cell, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToCell(r))
	}
	return out, nil
}

// AddLabel attaches label to cellID.
func (s *Service) AddLabel(ctx context.Context, projectKey, cellID, label string) error {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadLabelAdded, projectKey, events.BeadLabelAddedPayload{CellID: cellID, Label: label})
	return err
}

// RemoveLabel detaches label from cellID.
func (s *Service) RemoveLabel(ctx context.Context, projectKey, cellID, label string) error {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadLabelRemoved, projectKey, events.BeadLabelRemovedPayload{CellID: cellID, Label: label})
	return err
}

// Comment is one entry in a cell's discussion thread.
type Comment struct {
	ID        string `json:"id"`
	CellID    string `json:"cell_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	ParentID  string `json:"parent_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// AddComment appends a comment to cellID, returning its generated id.
func (s *Service) AddComment(ctx context.Context, projectKey, cellID, author, body, parentID string) (string, error) {
	cellID, err := s.ResolveShortID(ctx, projectKey, cellID)
	if err != nil {
		return "", err
	}
	id := ids.NewReservationID() // uuid-based ids double as generic opaque identifiers outside the cell-id namespace
	_, err = s.Kernel.Append(ctx, events.BeadCommentAdded, projectKey, events.BeadCommentAddedPayload{
		ID: id, CellID: cellID, Author: author, Body: body, ParentID: parentID,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateComment replaces a comment's body.
func (s *Service) UpdateComment(ctx context.Context, projectKey, commentID, body string) error {
	_, err := s.Kernel.Append(ctx, events.BeadCommentUpdated, projectKey, events.BeadCommentUpdatedPayload{ID: commentID, Body: body})
	return err
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, projectKey, commentID string) error {
	_, err := s.Kernel.Append(ctx, events.BeadCommentDeleted, projectKey, events.BeadCommentDeletedPayload{ID: commentID})
	return err
}

// AddChildToEpic reparents childID under epicID, rejecting epics that
// are already closed.
func (s *Service) AddChildToEpic(ctx context.Context, projectKey, epicID, childID string) error {
	epicID, err := s.ResolveShortID(ctx, projectKey, epicID)
	if err != nil {
		return err
	}
	childID, err = s.ResolveShortID(ctx, projectKey, childID)
	if err != nil {
		return err
	}
	epic, err := s.GetBead(ctx, projectKey, epicID)
	if err != nil {
		return err
	}
	if epic.Status == "closed" {
		return kerrors.New(kerrors.Conflict, "cannot add a child to a closed epic")
	}
	_, err = s.Kernel.Append(ctx, events.BeadChildAdded, projectKey, events.BeadChildAddedPayload{EpicID: epicID, ChildID: childID})
	return err
}

// RemoveChildFromEpic clears childID's parent link, provided it still
// points at epicID.
func (s *Service) RemoveChildFromEpic(ctx context.Context, projectKey, epicID, childID string) error {
	epicID, err := s.ResolveShortID(ctx, projectKey, epicID)
	if err != nil {
		return err
	}
	childID, err = s.ResolveShortID(ctx, projectKey, childID)
	if err != nil {
		return err
	}
	_, err = s.Kernel.Append(ctx, events.BeadChildRemoved, projectKey, events.BeadChildRemovedPayload{EpicID: epicID, ChildID: childID})
	return err
}

// GetEpicChildren lists cells parented under epicID.
func (s *Service) GetEpicChildren(ctx context.Context, projectKey, epicID string) ([]Cell, error) {
	epicID, err := s.ResolveShortID(ctx, projectKey, epicID)
	if err != nil {
		return nil, err
	}
	return s.QueryBeads(ctx, projectKey, QueryFilter{ParentID: epicID, IncludeDeleted: true})
}

// IsEpicClosureEligible reports whether every child of epicID is closed
// or soft-deleted (tombstone).
func (s *Service) IsEpicClosureEligible(ctx context.Context, projectKey, epicID string) (bool, error) {
	children, err := s.GetEpicChildren(ctx, projectKey, epicID)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if c.DeletedAt != nil {
			continue
		}
		if c.Status != "closed" {
			return false, nil
		}
	}
	return true, nil
}
