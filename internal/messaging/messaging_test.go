package messaging

import (
	"context"
	"testing"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kerrors"
)

func TestSendMessageRequiresFromAgentAndRecipients(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "proj", SendArgs{ToAgents: []string{"bob"}}); !kerrors.Is(err, kerrors.Invalid) {
		t.Fatalf("expected Invalid for missing from_agent, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice"}); !kerrors.Is(err, kerrors.Invalid) {
		t.Fatalf("expected Invalid for missing recipients, got %v", err)
	}
}

func TestSendMessageDefaultsImportanceToNormal(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	id, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Subject: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	inbox, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob"})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != id {
		t.Fatalf("expected inbox to contain the sent message, got %+v", inbox)
	}
	if inbox[0].Importance != "normal" {
		t.Errorf("expected default importance normal, got %q", inbox[0].Importance)
	}
}

func TestInboxOrdersByImportanceThenRecency(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Subject: "normal one", Importance: "normal"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Subject: "urgent one", Importance: "urgent"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	inbox, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob"})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(inbox))
	}
	if inbox[0].Subject != "urgent one" {
		t.Fatalf("expected the urgent message to sort first, got %+v", inbox[0])
	}
}

func TestInboxUnreadOnlyFiltersReadMessages(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	id, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Subject: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	msg, err := svc.ReadMessage(ctx, "proj", id, "bob")
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.ID != id {
		t.Fatalf("expected returned message id %q, got %q", id, msg.ID)
	}

	inbox, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob", UnreadOnly: true})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(inbox) != 0 {
		t.Fatalf("expected 0 unread messages after ReadMessage, got %d", len(inbox))
	}

	all, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob"})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(all) != 1 || all[0].ReadAt == nil {
		t.Fatalf("expected the message to carry a read_at timestamp, got %+v", all)
	}
}

func TestAckMessageSetsAckedAt(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	id, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Subject: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := svc.AckMessage(ctx, "proj", id, "bob"); err != nil {
		t.Fatalf("AckMessage failed: %v", err)
	}

	inbox, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob"})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(inbox) != 1 || inbox[0].AckedAt == nil {
		t.Fatalf("expected the message to carry an acked_at timestamp, got %+v", inbox)
	}
}

func TestInboxTruncatesBodyToDefaultBodyChars(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 5)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "proj", SendArgs{FromAgent: "alice", ToAgents: []string{"bob"}, Body: "this body is much longer than five characters"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	inbox, err := svc.Inbox(ctx, "proj", InboxFilter{Agent: "bob"})
	if err != nil {
		t.Fatalf("Inbox failed: %v", err)
	}
	if len(inbox) != 1 || len(inbox[0].Body) != 5 {
		t.Fatalf("expected body truncated to 5 chars, got %+v", inbox)
	}
}

func TestRegisterAgentRequiresName(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, 0)
	ctx := context.Background()

	err := svc.RegisterAgent(ctx, "proj", events.AgentRegisteredPayload{})
	if !kerrors.Is(err, kerrors.Invalid) {
		t.Fatalf("expected Invalid for missing agent name, got %v", err)
	}
}
