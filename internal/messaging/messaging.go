// Package messaging implements C5: agent registration, send/inbox/read/
// ack over the event-sourced agents/messages/message_recipients views.
// Every mutation is a single kernel.Append call; reads query the views
// directly rather than replaying the log.
package messaging

import (
	"context"
	"fmt"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/ids"
	"github.com/hiveforge/kernel/internal/kerrors"
	"github.com/hiveforge/kernel/internal/kernel"
)

// Service is the messaging surface cmd/hivectl and internal/stream call
// into. DefaultBodyChars truncates inbox preview bodies; 0 means no
// truncation.
type Service struct {
	Kernel          *kernel.Kernel
	DefaultBodyChars int
}

func New(k *kernel.Kernel, defaultBodyChars int) *Service {
	return &Service{Kernel: k, DefaultBodyChars: defaultBodyChars}
}

// Message is the read-side view of one sent message, joined against its
// own recipient row for the caller asking (read_at/acked_at are nil
// unless the agent in question has acted on it).
type Message struct {
	ID         string `json:"id"`
	FromAgent  string `json:"from_agent"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	ThreadID   string `json:"thread_id,omitempty"`
	Importance string `json:"importance"`
	SentAt     int64  `json:"sent_at"`
	ReadAt     *int64 `json:"read_at,omitempty"`
	AckedAt    *int64 `json:"acked_at,omitempty"`
}

// RegisterAgent records or refreshes an agent's presence.
func (s *Service) RegisterAgent(ctx context.Context, projectKey string, p events.AgentRegisteredPayload) error {
	if p.Name == "" {
		return kerrors.New(kerrors.Invalid, "agent name is required")
	}
	_, err := s.Kernel.Append(ctx, events.AgentRegistered, projectKey, p)
	return err
}

// SendArgs are the caller-supplied fields for SendMessage; ID and
// sequence are assigned by the kernel.
type SendArgs struct {
	FromAgent  string
	ToAgents   []string
	Subject    string
	Body       string
	ThreadID   string
	Importance string
}

// SendMessage appends a message_sent event, fanning out to every
// recipient's inbox in the same transaction as the send.
func (s *Service) SendMessage(ctx context.Context, projectKey string, args SendArgs) (string, error) {
	if args.FromAgent == "" {
		return "", kerrors.New(kerrors.Invalid, "from_agent is required")
	}
	if len(args.ToAgents) == 0 {
		return "", kerrors.New(kerrors.Invalid, "at least one recipient is required")
	}
	if args.Importance == "" {
		args.Importance = "normal"
	}
	id := ids.NewMessageID()
	payload := events.MessageSentPayload{
		ID:         id,
		FromAgent:  args.FromAgent,
		ToAgents:   args.ToAgents,
		Subject:    args.Subject,
		Body:       args.Body,
		ThreadID:   args.ThreadID,
		Importance: args.Importance,
	}
	if _, err := s.Kernel.Append(ctx, events.MessageSent, projectKey, payload); err != nil {
		return "", err
	}
	return id, nil
}

// InboxFilter narrows Inbox.
type InboxFilter struct {
	Agent         string
	UnreadOnly    bool
	ThreadID      string
	SinceSequence int64
	Limit         int
}

// Inbox returns messages addressed to filter.Agent, ordered by
// importance (urgent first) then recency, truncating bodies to
// DefaultBodyChars when that's set. filter.Limit caps the number of
// messages returned; 0 or less means no cap.
func (s *Service) Inbox(ctx context.Context, projectKey string, filter InboxFilter) ([]Message, error) {
	if filter.Agent == "" {
		return nil, kerrors.New(kerrors.Invalid, "agent is required")
	}
	where := []string{"m.project_key = ?", "r.agent_name = ?"}
	args := []any{projectKey, filter.Agent}

	if filter.UnreadOnly {
		where = append(where, "r.read_at IS NULL")
	}
	if filter.ThreadID != "" {
		where = append(where, "m.thread_id = ?")
		args = append(args, filter.ThreadID)
	}
	if filter.SinceSequence > 0 {
		// Messages don't carry their own event sequence on the view, so
		// "since" is approximated via sent_at for the view-only path;
		// callers needing exact sequence-based resume should use
		// kernel.Events directly against the log.
		where = append(where, "m.sent_at > ?")
		args = append(args, filter.SinceSequence)
	}

	query := fmt.Sprintf(`SELECT m.id, m.from_agent, m.subject, m.body, m.thread_id, m.importance, m.sent_at, r.read_at, r.acked_at
		FROM messages m JOIN message_recipients r ON r.message_id = m.id
		WHERE %s
		ORDER BY CASE m.importance WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END, m.sent_at DESC`,
		joinAnd(where))
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.Kernel.Adapter.Query(ctx, query, args...)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query inbox", err)
	}

	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		msg := rowToMessage(r)
		if s.DefaultBodyChars > 0 && len(msg.Body) > s.DefaultBodyChars {
			msg.Body = msg.Body[:s.DefaultBodyChars]
		}
		out = append(out, msg)
	}
	return out, nil
}

// ReadMessage marks messageID read by agent and returns the full message
// (unbounded body, regardless of DefaultBodyChars) as it stands after the
// read is recorded.
func (s *Service) ReadMessage(ctx context.Context, projectKey, messageID, agent string) (*Message, error) {
	_, err := s.Kernel.Append(ctx, events.MessageRead, projectKey, events.MessageReadPayload{
		MessageID: messageID, Agent: agent,
	})
	if err != nil {
		return nil, err
	}
	return s.getMessage(ctx, messageID, agent)
}

func (s *Service) getMessage(ctx context.Context, messageID, agent string) (*Message, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT m.id, m.from_agent, m.subject, m.body, m.thread_id, m.importance, m.sent_at, r.read_at, r.acked_at
		FROM messages m JOIN message_recipients r ON r.message_id = m.id
		WHERE m.id = ? AND r.agent_name = ?`, messageID, agent)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query message", err)
	}
	if len(rows) == 0 {
		return nil, kerrors.New(kerrors.NotFound, "message not found: "+messageID)
	}
	msg := rowToMessage(rows[0])
	return &msg, nil
}

func rowToMessage(r map[string]any) Message {
	return Message{
		ID:         asString(r["id"]),
		FromAgent:  asString(r["from_agent"]),
		Subject:    asString(r["subject"]),
		Body:       asString(r["body"]),
		ThreadID:   asString(r["thread_id"]),
		Importance: asString(r["importance"]),
		SentAt:     asInt64(r["sent_at"]),
		ReadAt:     asInt64Ptr(r["read_at"]),
		AckedAt:    asInt64Ptr(r["acked_at"]),
	}
}

// AckMessage marks messageID acknowledged by agent.
func (s *Service) AckMessage(ctx context.Context, projectKey, messageID, agent string) error {
	_, err := s.Kernel.Append(ctx, events.MessageAcked, projectKey, events.MessageAckedPayload{
		MessageID: messageID, Agent: agent,
	})
	return err
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
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

func asInt64Ptr(v any) *int64 {
	if v == nil {
		return nil
	}
	n := asInt64(v)
	return &n
}
