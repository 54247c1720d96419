package events

// Payload structs for the event types the projection registry actually
// applies (spec §4.4's "Required apply rules"). Outcome/checkpoint/
// session events are accepted by the log (closed Type set) but carry
// caller-defined payloads — they are out of the core's projection scope
// per §1 (coordinator decomposition heuristics).

type AgentRegisteredPayload struct {
	Name            string `json:"name"`
	Program         string `json:"program"`
	Model           string `json:"model"`
	TaskDescription string `json:"task_description"`
}

type MessageSentPayload struct {
	ID         string   `json:"id"`
	FromAgent  string   `json:"from_agent"`
	ToAgents   []string `json:"to_agents"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	ThreadID   string   `json:"thread_id,omitempty"`
	Importance string   `json:"importance"`
}

type MessageReadPayload struct {
	MessageID string `json:"message_id"`
	Agent     string `json:"agent"`
}

type MessageAckedPayload struct {
	MessageID string `json:"message_id"`
	Agent     string `json:"agent"`
}

type FileReservedPayload struct {
	ID         string   `json:"id"`
	AgentName  string   `json:"agent_name"`
	Paths      []string `json:"paths"`
	Exclusive  bool     `json:"exclusive"`
	Reason     string   `json:"reason"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"`
}

type FileReleasedPayload struct {
	AgentName string   `json:"agent_name"`
	Paths     []string `json:"paths,omitempty"`
}

type BeadCreatedPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
	Priority    int    `json:"priority"`
	ParentID    string `json:"parent_id,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
}

type BeadUpdatedPayload struct {
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

type BeadStatusChangedPayload struct {
	ID        string `json:"id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

type BeadClosedPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BeadReopenedPayload struct {
	ID string `json:"id"`
}

type BeadDeletedPayload struct {
	ID     string `json:"id"`
	By     string `json:"by"`
	Reason string `json:"reason"`
}

type BeadDependencyAddedPayload struct {
	CellID       string `json:"cell_id"`
	DependsOnID  string `json:"depends_on_id"`
	Relationship string `json:"relationship"`
}

type BeadDependencyRemovedPayload struct {
	CellID       string `json:"cell_id"`
	DependsOnID  string `json:"depends_on_id"`
	Relationship string `json:"relationship"`
}

type BeadLabelAddedPayload struct {
	CellID string `json:"cell_id"`
	Label  string `json:"label"`
}

type BeadLabelRemovedPayload struct {
	CellID string `json:"cell_id"`
	Label  string `json:"label"`
}

type BeadCommentAddedPayload struct {
	ID       string `json:"id"`
	CellID   string `json:"cell_id"`
	Author   string `json:"author"`
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
}

type BeadCommentUpdatedPayload struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type BeadCommentDeletedPayload struct {
	ID string `json:"id"`
}

type BeadChildAddedPayload struct {
	EpicID  string `json:"epic_id"`
	ChildID string `json:"child_id"`
}

type BeadChildRemovedPayload struct {
	EpicID  string `json:"epic_id"`
	ChildID string `json:"child_id"`
}

// MemoryStoredPayload carries its own embedding (base64-encoded
// little-endian float32 bytes, see EncodeEmbedding/DecodeEmbedding) so
// the projection has everything it needs from the log alone — replay
// never depends on anything outside the event's own data.
type MemoryStoredPayload struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Collection string         `json:"collection"`
	Confidence float64        `json:"confidence"`
	Embedding  string         `json:"embedding"`
}

type MemoryRemovedPayload struct {
	ID string `json:"id"`
}

type MemoryValidatedPayload struct {
	ID string `json:"id"`
}
