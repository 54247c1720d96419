// Package projections applies committed events to the materialised
// views (agents, messages, reservations, cells, memory) that read paths
// query directly instead of folding the whole event log on every read.
// Apply functions are pure: given an event and a transaction, they
// mutate exactly the tables that event's type owns. internal/kernel
// calls Apply inside the same transaction as the event insert, so a
// view row is never visible before the event that produced it (spec
// §4.3/§4.4's atomicity invariant).
package projections

import (
	"context"
	"fmt"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// applyFunc mutates the views for one committed event.
type applyFunc func(ctx context.Context, tx adapter.Tx, e events.Event) error

// registry maps event Type to its apply rule. Populated by each
// domain's init() via register, so the per-domain files stay the
// single place that knows both the event shape and the table shape.
var registry = map[events.Type]applyFunc{}

func register(t events.Type, fn applyFunc) {
	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("projections: duplicate apply rule for %s", t))
	}
	registry[t] = fn
}

// Apply runs the registered rule for e.Type. Event types with no
// registered rule (outcome/checkpoint/session bookkeeping, spec §1) are
// accepted as no-ops: the log still records them, there's just no view
// to update.
func Apply(ctx context.Context, tx adapter.Tx, e events.Event) error {
	fn, ok := registry[e.Type]
	if !ok {
		return nil
	}
	if err := fn(ctx, tx, e); err != nil {
		return kerrors.Wrap(kerrors.Transient, fmt.Sprintf("apply %s", e.Type), err)
	}
	return nil
}
