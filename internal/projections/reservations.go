package projections

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
)

func init() {
	register(events.FileReserved, applyFileReserved)
	register(events.FileReleased, applyFileReleased)
}

// applyFileReserved inserts one reservation row per path pattern the
// event claims — reservations.path_pattern is single-valued so the
// overlap check (internal/reservations) compares one pattern per row
// instead of unpacking a JSON array at query time.
func applyFileReserved(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.FileReservedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	var expiresAt any
	if p.TTLSeconds > 0 {
		expiresAt = e.Timestamp + p.TTLSeconds*1000
	}
	for _, pattern := range p.Paths {
		if _, err := tx.Exec(ctx, `INSERT INTO reservations (id, project_key, agent_name, path_pattern, exclusive, reason, acquired_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, e.ProjectKey, p.AgentName, pattern, p.Exclusive, p.Reason, e.Timestamp, expiresAt); err != nil {
			return err
		}
	}
	return nil
}

// applyFileReleased sets released_at for the agent's active
// reservations. An empty Paths releases everything the agent holds;
// a non-empty Paths narrows the release to those exact patterns.
func applyFileReleased(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.FileReleasedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if len(p.Paths) == 0 {
		_, err := tx.Exec(ctx, `UPDATE reservations SET released_at = ?
			WHERE project_key = ? AND agent_name = ? AND released_at IS NULL`,
			e.Timestamp, e.ProjectKey, p.AgentName)
		return err
	}
	for _, pattern := range p.Paths {
		if _, err := tx.Exec(ctx, `UPDATE reservations SET released_at = ?
			WHERE project_key = ? AND agent_name = ? AND path_pattern = ? AND released_at IS NULL`,
			e.Timestamp, e.ProjectKey, p.AgentName, pattern); err != nil {
			return err
		}
	}
	return nil
}
