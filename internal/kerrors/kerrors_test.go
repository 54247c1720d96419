package kerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := New(NotFound, "cell missing")
	wrapped := Wrap(Transient, "query cell", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected KindOf to recognize a kerrors.Error")
	}
	if kind != Transient {
		t.Fatalf("expected outer kind Transient, got %s", kind)
	}
}

func TestKindOfUnclassifiedError(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	if ok {
		t.Fatal("expected an unclassified error to report ok=false")
	}
}

func TestIs(t *testing.T) {
	err := New(Conflict, "ambiguous id").WithDetails(map[string]any{"matches": []string{"a", "b"}})
	if !Is(err, Conflict) {
		t.Fatal("expected Is(err, Conflict) to be true")
	}
	if Is(err, NotFound) {
		t.Fatal("expected Is(err, NotFound) to be false")
	}
}

func TestWithDetailsReturnsReceiver(t *testing.T) {
	err := New(Invalid, "bad input")
	details := map[string]any{"field": "title"}
	returned := err.WithDetails(details)
	if returned != err {
		t.Fatal("expected WithDetails to return the same *Error instance")
	}
	if err.Details["field"] != "title" {
		t.Fatal("expected details to be attached")
	}
}

func TestComposite(t *testing.T) {
	original := errors.New("insert failed")
	rollback := errors.New("rollback failed")
	err := Composite(original, rollback)
	if err.Kind != Transient {
		t.Fatalf("expected Composite to produce a Transient error, got %s", err.Kind)
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Unavailable, "write export file", cause)
	msg := err.Error()
	if !strings.Contains(msg, "disk full") {
		t.Fatalf("expected error message to include the cause, got %q", msg)
	}
	if !errors.Is(err, err) {
		t.Fatal("expected errors.Is to match itself")
	}
}
