// Package events defines the tagged union of events the kernel ever
// appends, and the low-level append-only log storage built on top of
// internal/adapter. Projection logic lives one layer up, in
// internal/projections, so that replay (internal/replay) can depend on
// both without events needing to know about projections.
package events

import (
	"encoding/json"
	"time"
)

// Type is the closed discriminated tag on an Event's payload. The set is
// intentionally wider than the "Required apply rules" spec §4.4 lists in
// detail — messaging, reservation, cell, memory, agent, outcome, and
// checkpoint domains each get their own namespace of tags. The union
// declares the 28 tags below; only a subset (documented in
// internal/projections) drives a materialised view today.
type Type string

const (
	// Agent domain.
	AgentRegistered Type = "agent_registered"

	// Messaging domain.
	MessageSent  Type = "message_sent"
	MessageRead  Type = "message_read"
	MessageAcked Type = "message_acked"

	// Reservation domain.
	FileReserved Type = "file_reserved"
	FileReleased Type = "file_released"

	// Cell (bead) domain.
	BeadCreated           Type = "bead_created"
	BeadUpdated           Type = "bead_updated"
	BeadStatusChanged     Type = "bead_status_changed"
	BeadClosed            Type = "bead_closed"
	BeadReopened          Type = "bead_reopened"
	BeadDeleted           Type = "bead_deleted"
	BeadDependencyAdded   Type = "bead_dependency_added"
	BeadDependencyRemoved Type = "bead_dependency_removed"
	BeadLabelAdded        Type = "bead_label_added"
	BeadLabelRemoved      Type = "bead_label_removed"
	BeadCommentAdded      Type = "bead_comment_added"
	BeadCommentUpdated    Type = "bead_comment_updated"
	BeadCommentDeleted    Type = "bead_comment_deleted"
	BeadChildAdded        Type = "bead_child_added"
	BeadChildRemoved      Type = "bead_child_removed"

	// Memory domain.
	MemoryStored    Type = "memory_stored"
	MemoryRemoved   Type = "memory_removed"
	MemoryValidated Type = "memory_validated"

	// Outcome domain — coordinator-reported task results, consumed by
	// the out-of-scope memory-learning heuristics but still part of the
	// closed event-type set the log accepts.
	OutcomeRecorded Type = "outcome_recorded"

	// Checkpoint domain — coordinator session bookkeeping markers.
	CheckpointCreated Type = "checkpoint_created"
	SessionStarted    Type = "session_started"
	SessionEnded      Type = "session_ended"
)

// Event is one immutable, sequenced, typed record. Data carries the
// type-specific payload as already-marshalled JSON; projection apply
// functions unmarshal into the concrete payload struct for their Type.
type Event struct {
	Sequence   int64           `json:"sequence"`
	Type       Type            `json:"type"`
	ProjectKey string          `json:"project_key"`
	Timestamp  int64           `json:"timestamp"` // milliseconds since epoch
	Data       json.RawMessage `json:"data"`
}

// NewEvent builds an Event with the current time and a marshalled
// payload, ready to append. Sequence is left zero — the store assigns it.
func NewEvent(typ Type, projectKey string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       typ,
		ProjectKey: projectKey,
		Timestamp:  time.Now().UnixMilli(),
		Data:       data,
	}, nil
}

// Decode unmarshals e.Data into dst.
func (e Event) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}
