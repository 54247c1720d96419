package schema

import (
	"context"

	"github.com/hiveforge/kernel/internal/adapter"
)

// migrateMessaging creates agents, messages, and a per-recipient side
// table (message_recipients) carrying the read/ack timestamps spec §3
// allows to live either as expanded rows or a side table — the kernel
// takes the side-table option so `to_agents` stays a single insert and
// fan-out is a bounded loop over recipients.
func migrateMessaging(ctx context.Context, tx adapter.Tx, d adapter.Dialect) error {
	ts := timestampType(d)

	agents := `CREATE TABLE IF NOT EXISTS agents (
		project_key TEXT NOT NULL,
		name TEXT NOT NULL,
		program TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		task_description TEXT NOT NULL DEFAULT '',
		registered_at ` + ts + ` NOT NULL,
		last_active_at ` + ts + ` NOT NULL,
		PRIMARY KEY (project_key, name)
	)`
	if _, err := tx.Exec(ctx, agents); err != nil {
		return err
	}

	messages := `CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		project_key TEXT NOT NULL,
		from_agent TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		thread_id TEXT,
		importance TEXT NOT NULL DEFAULT 'normal',
		sent_at ` + ts + ` NOT NULL
	)`
	if _, err := tx.Exec(ctx, messages); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_project_thread ON messages(project_key, thread_id)`); err != nil {
		return err
	}

	recipients := `CREATE TABLE IF NOT EXISTS message_recipients (
		message_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		read_at ` + ts + `,
		acked_at ` + ts + `,
		PRIMARY KEY (message_id, agent_name)
	)`
	if _, err := tx.Exec(ctx, recipients); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_recipients_agent ON message_recipients(agent_name)`)
	return err
}

func timestampType(d adapter.Dialect) string {
	if d == adapter.DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}
