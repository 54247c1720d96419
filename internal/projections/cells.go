package projections

import (
	"context"
	"encoding/json"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
)

func init() {
	register(events.BeadCreated, applyBeadCreated)
	register(events.BeadUpdated, applyBeadUpdated)
	register(events.BeadStatusChanged, applyBeadStatusChanged)
	register(events.BeadClosed, applyBeadClosed)
	register(events.BeadReopened, applyBeadReopened)
	register(events.BeadDeleted, applyBeadDeleted)
	register(events.BeadDependencyAdded, applyBeadDependencyAdded)
	register(events.BeadDependencyRemoved, applyBeadDependencyRemoved)
	register(events.BeadLabelAdded, applyBeadLabelAdded)
	register(events.BeadLabelRemoved, applyBeadLabelRemoved)
	register(events.BeadCommentAdded, applyBeadCommentAdded)
	register(events.BeadCommentUpdated, applyBeadCommentUpdated)
	register(events.BeadCommentDeleted, applyBeadCommentDeleted)
	register(events.BeadChildAdded, applyBeadChildAdded)
	register(events.BeadChildRemoved, applyBeadChildRemoved)
}

func applyBeadCreated(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadCreatedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	var parentID any
	if p.ParentID != "" {
		parentID = p.ParentID
	}
	if _, err := tx.Exec(ctx, `INSERT INTO cells (id, project_key, title, description, issue_type, priority, parent_id, assignee, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'open', ?, ?)`,
		p.ID, e.ProjectKey, p.Title, p.Description, p.IssueType, p.Priority, parentID, p.Assignee, e.Timestamp, e.Timestamp); err != nil {
		return err
	}
	return markDirty(ctx, tx, p.ID, e.Timestamp)
}

func applyBeadUpdated(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadUpdatedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	// updates is a subset of the mutable cell columns (title,
	// description, priority, assignee) built at call time in
	// internal/cells; the projection checks each column name again with
	// mutableCellColumn and skips any other key, since the name is
	// spliced into the SQL.
	for col, val := range p.Updates {
		if !mutableCellColumn(col) {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE cells SET `+col+` = ?, updated_at = ? WHERE id = ?`, val, e.Timestamp, p.ID); err != nil {
			return err
		}
	}
	return markDirty(ctx, tx, p.ID, e.Timestamp)
}

func mutableCellColumn(col string) bool {
	switch col {
	case "title", "description", "priority", "assignee":
		return true
	default:
		return false
	}
}

func applyBeadStatusChanged(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadStatusChangedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE cells SET status = ?, updated_at = ? WHERE id = ?`, p.NewStatus, e.Timestamp, p.ID); err != nil {
		return err
	}
	if err := rebuildBlockedCacheFor(ctx, tx, p.ID, e.Timestamp); err != nil {
		return err
	}
	return markDirty(ctx, tx, p.ID, e.Timestamp)
}

func applyBeadClosed(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadClosedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE cells SET status = 'closed', closed_at = ?, closed_reason = ?, updated_at = ? WHERE id = ?`,
		e.Timestamp, p.Reason, e.Timestamp, p.ID); err != nil {
		return err
	}
	if err := rebuildDependentsBlockedCache(ctx, tx, p.ID, e.Timestamp); err != nil {
		return err
	}
	return markDirty(ctx, tx, p.ID, e.Timestamp)
}

func applyBeadReopened(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadReopenedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE cells SET status = 'open', closed_at = NULL, closed_reason = '', updated_at = ? WHERE id = ?`,
		e.Timestamp, p.ID); err != nil {
		return err
	}
	if err := rebuildDependentsBlockedCache(ctx, tx, p.ID, e.Timestamp); err != nil {
		return err
	}
	return markDirty(ctx, tx, p.ID, e.Timestamp)
}

func applyBeadDeleted(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadDeletedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE cells SET deleted_at = ?, deleted_by = ?, delete_reason = ? WHERE id = ?`,
		e.Timestamp, p.By, p.Reason, p.ID)
	return err
}

func applyBeadDependencyAdded(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadDependencyAddedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO cell_dependencies (cell_id, depends_on_id, relationship, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (cell_id, depends_on_id, relationship) DO NOTHING`,
		p.CellID, p.DependsOnID, p.Relationship, e.Timestamp); err != nil {
		return err
	}
	return rebuildBlockedCacheFor(ctx, tx, p.CellID, e.Timestamp)
}

func applyBeadDependencyRemoved(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadDependencyRemovedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cell_dependencies WHERE cell_id = ? AND depends_on_id = ? AND relationship = ?`,
		p.CellID, p.DependsOnID, p.Relationship); err != nil {
		return err
	}
	return rebuildBlockedCacheFor(ctx, tx, p.CellID, e.Timestamp)
}

func applyBeadLabelAdded(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadLabelAddedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO cell_labels (cell_id, label) VALUES (?, ?) ON CONFLICT (cell_id, label) DO NOTHING`,
		p.CellID, p.Label)
	return err
}

func applyBeadLabelRemoved(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadLabelRemovedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM cell_labels WHERE cell_id = ? AND label = ?`, p.CellID, p.Label)
	return err
}

func applyBeadCommentAdded(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadCommentAddedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	var parentID any
	if p.ParentID != "" {
		parentID = p.ParentID
	}
	_, err := tx.Exec(ctx, `INSERT INTO cell_comments (id, cell_id, author, body, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CellID, p.Author, p.Body, parentID, e.Timestamp, e.Timestamp)
	return err
}

func applyBeadCommentUpdated(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadCommentUpdatedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE cell_comments SET body = ?, updated_at = ? WHERE id = ?`, p.Body, e.Timestamp, p.ID)
	return err
}

func applyBeadCommentDeleted(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadCommentDeletedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM cell_comments WHERE id = ?`, p.ID)
	return err
}

func applyBeadChildAdded(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadChildAddedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE cells SET parent_id = ?, updated_at = ? WHERE id = ?`, p.EpicID, e.Timestamp, p.ChildID)
	return err
}

func applyBeadChildRemoved(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.BeadChildRemovedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE cells SET parent_id = NULL, updated_at = ? WHERE id = ? AND parent_id = ?`,
		e.Timestamp, p.ChildID, p.EpicID)
	return err
}

func markDirty(ctx context.Context, tx adapter.Tx, cellID string, ts int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO dirty_cells (cell_id, marked_at) VALUES (?, ?)
		ON CONFLICT (cell_id) DO UPDATE SET marked_at = excluded.marked_at`, cellID, ts)
	return err
}

// rebuildBlockedCacheFor recomputes cellID's blocker list: open cells it
// depends_on via a "blocks" relationship. blocked_cache is a derived
// table rebuilt on every dependency/status change rather than
// maintained incrementally, trading a few extra writes for never having
// to reason about incremental-update correctness (spec §9 "Cyclic
// back-references").
func rebuildBlockedCacheFor(ctx context.Context, tx adapter.Tx, cellID string, ts int64) error {
	rows, err := tx.Query(ctx, `SELECT d.depends_on_id FROM cell_dependencies d
		JOIN cells c ON c.id = d.depends_on_id
		WHERE d.cell_id = ? AND d.relationship = 'blocks' AND c.status != 'closed' AND c.deleted_at IS NULL`, cellID)
	if err != nil {
		return err
	}
	blockers := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := r["depends_on_id"].(string); ok {
			blockers = append(blockers, id)
		}
	}
	if len(blockers) == 0 {
		_, err := tx.Exec(ctx, `DELETE FROM blocked_cache WHERE cell_id = ?`, cellID)
		return err
	}
	data, err := json.Marshal(blockers)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO blocked_cache (cell_id, blocker_ids, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (cell_id) DO UPDATE SET blocker_ids = excluded.blocker_ids, updated_at = excluded.updated_at`,
		cellID, string(data), ts)
	return err
}

// rebuildDependentsBlockedCache recomputes the cache for every cell that
// depends on cellID, since that cell's closing/reopening can
// flip their blocked status.
func rebuildDependentsBlockedCache(ctx context.Context, tx adapter.Tx, cellID string, ts int64) error {
	rows, err := tx.Query(ctx, `SELECT cell_id FROM cell_dependencies WHERE depends_on_id = ? AND relationship = 'blocks'`, cellID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		dependent, ok := r["cell_id"].(string)
		if !ok {
			continue
		}
		if err := rebuildBlockedCacheFor(ctx, tx, dependent, ts); err != nil {
			return err
		}
	}
	return nil
}
