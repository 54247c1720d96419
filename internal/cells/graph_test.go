package cells

import (
	"context"
	"testing"

	"github.com/hiveforge/kernel/internal/kerrors"
)

func TestAddDependencyRejectsSelfDependency(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, "hv", 8)
	ctx := context.Background()

	c, err := svc.CreateBead(ctx, "proj", CreateArgs{Title: "x"})
	if err != nil {
		t.Fatalf("CreateBead failed: %v", err)
	}

	err = svc.AddDependency(ctx, "proj", c.ID, c.ID, "blocks")
	if !kerrors.Is(err, kerrors.Invalid) {
		t.Fatalf("expected Invalid for self-dependency, got %v", err)
	}
}

func TestAddDependencyRejectsDirectCycle(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, "hv", 8)
	ctx := context.Background()

	a, err := svc.CreateBead(ctx, "proj", CreateArgs{Title: "a"})
	if err != nil {
		t.Fatalf("CreateBead failed: %v", err)
	}
	b, err := svc.CreateBead(ctx, "proj", CreateArgs{Title: "b"})
	if err != nil {
		t.Fatalf("CreateBead failed: %v", err)
	}

	if err := svc.AddDependency(ctx, "proj", a.ID, b.ID, "blocks"); err != nil {
		t.Fatalf("AddDependency a->b failed: %v", err)
	}

	err = svc.AddDependency(ctx, "proj", b.ID, a.ID, "blocks")
	if !kerrors.Is(err, kerrors.Conflict) {
		t.Fatalf("expected Conflict rejecting the cycle-closing edge b->a, got %v", err)
	}
}

func TestAddDependencyRejectsTransitiveCycle(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, "hv", 8)
	ctx := context.Background()

	a, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "a"})
	b, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "b"})
	c, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "c"})

	if err := svc.AddDependency(ctx, "proj", a.ID, b.ID, "blocks"); err != nil {
		t.Fatalf("a->b failed: %v", err)
	}
	if err := svc.AddDependency(ctx, "proj", b.ID, c.ID, "blocks"); err != nil {
		t.Fatalf("b->c failed: %v", err)
	}

	err := svc.AddDependency(ctx, "proj", c.ID, a.ID, "blocks")
	if !kerrors.Is(err, kerrors.Conflict) {
		t.Fatalf("expected Conflict rejecting the transitive cycle c->a, got %v", err)
	}
}

func TestIsBlockedAndGetNextReadyBead(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, "hv", 8)
	ctx := context.Background()

	blocker, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "blocker", Priority: 1})
	blocked, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "blocked", Priority: 0})

	if err := svc.AddDependency(ctx, "proj", blocked.ID, blocker.ID, "blocks"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	isBlocked, err := svc.IsBlocked(ctx, "proj", blocked.ID)
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if !isBlocked {
		t.Fatal("expected blocked cell to be reported as blocked")
	}

	ready, err := svc.GetNextReadyBead(ctx, "proj")
	if err != nil {
		t.Fatalf("GetNextReadyBead failed: %v", err)
	}
	if ready == nil || ready.ID != blocker.ID {
		t.Fatalf("expected the unblocked, higher-priority cell %s to be next ready, got %+v", blocker.ID, ready)
	}

	if err := svc.CloseBead(ctx, "proj", blocker.ID, "done"); err != nil {
		t.Fatalf("CloseBead failed: %v", err)
	}
	isBlocked, err = svc.IsBlocked(ctx, "proj", blocked.ID)
	if err != nil {
		t.Fatalf("IsBlocked after closing blocker failed: %v", err)
	}
	if isBlocked {
		t.Fatal("expected cell to be unblocked once its blocker is closed")
	}
}

func TestAddChildToEpicRejectsClosedEpic(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, "hv", 8)
	ctx := context.Background()

	epic, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "epic", IssueType: "epic"})
	child, _ := svc.CreateBead(ctx, "proj", CreateArgs{Title: "child"})

	if err := svc.CloseBead(ctx, "proj", epic.ID, "done"); err != nil {
		t.Fatalf("CloseBead failed: %v", err)
	}

	err := svc.AddChildToEpic(ctx, "proj", epic.ID, child.ID)
	if !kerrors.Is(err, kerrors.Conflict) {
		t.Fatalf("expected Conflict adding a child to a closed epic, got %v", err)
	}
}
