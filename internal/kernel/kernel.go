// Package kernel wires the storage adapter, event log, and projection
// registry into the single entry point every higher-level service
// (messaging, reservations, cells, memory) calls through: Append never
// lets an event become visible in a materialised view before the event
// itself is durable, and never lets the reverse happen either, because
// both writes share one transaction.
package kernel

import (
	"context"
	"log"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kerrors"
	"github.com/hiveforge/kernel/internal/projections"
	"github.com/hiveforge/kernel/internal/telemetry"
)

// Publisher fans a committed event out to live subscribers. internal/stream.Bus
// satisfies this; kept as an interface here so this package never imports
// internal/stream (which itself depends on Kernel).
type Publisher interface {
	Publish(events.Event) error
}

// Kernel is the shared handle every service package embeds or takes by
// reference. It has no domain knowledge of its own — cells, messaging,
// reservations, and memory each layer their operations on top of
// Append/Query.
type Kernel struct {
	Adapter adapter.Adapter

	// Publisher is optional. When set, every event committed by Append
	// or AppendBatch is published after the transaction commits, so a
	// live SSE subscriber never observes an event that could still roll
	// back.
	Publisher Publisher
}

func New(a adapter.Adapter) *Kernel {
	return &Kernel{Adapter: a}
}

// publishAll notifies the bus for each committed event, logging rather
// than failing the caller — a dropped notification only delays a live
// subscriber, who still catches up via the durable offset query.
func (k *Kernel) publishAll(evts ...events.Event) {
	if k.Publisher == nil {
		return
	}
	for _, e := range evts {
		if err := k.Publisher.Publish(e); err != nil {
			log.Printf("publish event %d (%s): %v", e.Sequence, e.Type, err)
		}
	}
}

// Append builds and appends a single event, applying its projection in
// the same transaction, and returns the event with its sequence filled
// in. Every field a projection needs, including memory_stored's
// embedding, travels in payload — nothing is passed out of band, so
// internal/replay can reconstruct the same views from the log alone.
func (k *Kernel) Append(ctx context.Context, typ events.Type, projectKey string, payload any) (events.Event, error) {
	ctx, end := telemetry.StartSpan(ctx, "kernel.Append")
	var err error
	defer func() { end(err) }()

	evt, err := events.NewEvent(typ, projectKey, payload)
	if err != nil {
		err = kerrors.Wrap(kerrors.Invalid, "build event", err)
		return events.Event{}, err
	}
	var inserted events.Event
	err = k.Adapter.Transaction(ctx, func(tx adapter.Tx) error {
		var txErr error
		inserted, txErr = events.InsertEvent(ctx, tx, evt)
		if txErr != nil {
			return txErr
		}
		return projections.Apply(ctx, tx, inserted)
	})
	if err != nil {
		return events.Event{}, err
	}
	k.publishAll(inserted)
	return inserted, nil
}

// AppendBatch inserts and applies multiple events as one atomic unit —
// used by operations that are logically one action but span several
// event types (e.g. createBead with initial labels).
func (k *Kernel) AppendBatch(ctx context.Context, items []BatchItem) ([]events.Event, error) {
	ctx, end := telemetry.StartSpan(ctx, "kernel.AppendBatch")
	var err error
	defer func() { end(err) }()

	out := make([]events.Event, 0, len(items))
	err = k.Adapter.Transaction(ctx, func(tx adapter.Tx) error {
		for _, item := range items {
			evt, err := events.NewEvent(item.Type, item.ProjectKey, item.Payload)
			if err != nil {
				return kerrors.Wrap(kerrors.Invalid, "build event", err)
			}
			inserted, err := events.InsertEvent(ctx, tx, evt)
			if err != nil {
				return err
			}
			if err := projections.Apply(ctx, tx, inserted); err != nil {
				return err
			}
			out = append(out, inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.publishAll(out...)
	return out, nil
}

// BatchItem is one event to append as part of an AppendBatch call.
type BatchItem struct {
	Type       events.Type
	ProjectKey string
	Payload    any
}

// Events exposes the read-side log query, used by internal/replay and
// internal/stream.
func (k *Kernel) Events(ctx context.Context, f events.Filter) ([]events.Event, error) {
	return events.ReadEvents(ctx, k.Adapter, f)
}

// LatestSequence returns the project's newest sequence number, or 0.
func (k *Kernel) LatestSequence(ctx context.Context, projectKey string) (int64, error) {
	return events.LatestSequence(ctx, k.Adapter, projectKey)
}
