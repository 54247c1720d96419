package projections

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
)

func init() {
	register(events.AgentRegistered, applyAgentRegistered)
	register(events.MessageSent, applyMessageSent)
	register(events.MessageRead, applyMessageRead)
	register(events.MessageAcked, applyMessageAcked)
}

func applyAgentRegistered(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.AgentRegisteredPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO agents (project_key, name, program, model, task_description, registered_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_key, name) DO UPDATE SET
			program = excluded.program,
			model = excluded.model,
			task_description = excluded.task_description,
			last_active_at = excluded.last_active_at`,
		e.ProjectKey, p.Name, p.Program, p.Model, p.TaskDescription, e.Timestamp, e.Timestamp)
	return err
}

func applyMessageSent(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MessageSentPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	var threadID any
	if p.ThreadID != "" {
		threadID = p.ThreadID
	}
	if _, err := tx.Exec(ctx, `INSERT INTO messages (id, project_key, from_agent, subject, body, thread_id, importance, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, e.ProjectKey, p.FromAgent, p.Subject, p.Body, threadID, p.Importance, e.Timestamp); err != nil {
		return err
	}
	for _, recipient := range p.ToAgents {
		if _, err := tx.Exec(ctx, `INSERT INTO message_recipients (message_id, agent_name) VALUES (?, ?)`,
			p.ID, recipient); err != nil {
			return err
		}
	}
	return nil
}

func applyMessageRead(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MessageReadPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE message_recipients SET read_at = ? WHERE message_id = ? AND agent_name = ?`,
		e.Timestamp, p.MessageID, p.Agent)
	return err
}

func applyMessageAcked(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MessageAckedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE message_recipients SET acked_at = ? WHERE message_id = ? AND agent_name = ?`,
		e.Timestamp, p.MessageID, p.Agent)
	return err
}
