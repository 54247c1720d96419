// Package stream implements C10: the durable offset-addressable event
// stream, backed by an embedded NATS server for live fan-out and the
// event log itself for historical replay.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kerrors"
)

// Bus is the in-process notify primitive the Design Notes invite in
// place of a literal 100ms poll loop: internal/kernel publishes here
// after a transaction commits, and SSE subscribers translate messages
// to frames as they arrive instead of polling readEvents on a timer.
type Bus struct {
	srv  *server.Server
	conn *nats.Conn
}

// NewEmbeddedBus starts an in-process NATS server bound to port (0 picks
// a free port) and connects a client to it.
func NewEmbeddedBus(port int) (*Bus, error) {
	opts := &server.Options{
		Port:      port,
		NoLog:     true,
		NoSigs:    true,
		JetStream: false,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "start embedded nats server", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, kerrors.New(kerrors.Unavailable, "embedded nats server did not become ready")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, kerrors.Wrap(kerrors.Unavailable, "connect to embedded nats", err)
	}
	return &Bus{srv: srv, conn: conn}, nil
}

func subject(projectKey string) string {
	return fmt.Sprintf("hive.events.%s", projectKey)
}

// Publish fans e out to every live subscriber for e.ProjectKey. Called
// only after the transaction that produced e has committed, so a
// subscriber never observes an event that later rolls back.
func (b *Bus) Publish(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return kerrors.Wrap(kerrors.Invalid, "marshal event for publish", err)
	}
	if err := b.conn.Publish(subject(e.ProjectKey), data); err != nil {
		return kerrors.Wrap(kerrors.Transient, "publish event", err)
	}
	return nil
}

// Subscribe delivers every event published for projectKey to handler
// until the returned unsubscribe func runs (on client disconnect) or
// Close runs (on server stop) — either path removes the subscription,
// so no goroutine ever outlives its subscriber.
func (b *Bus) Subscribe(projectKey string, handler func(events.Event)) (unsubscribe func(), err error) {
	sub, err := b.conn.Subscribe(subject(projectKey), func(msg *nats.Msg) {
		var e events.Event
		if jsonErr := json.Unmarshal(msg.Data, &e); jsonErr != nil {
			return
		}
		handler(e)
	})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "subscribe", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close closes the client connection and shuts the embedded server down,
// unsubscribing every live subscriber in the process.
func (b *Bus) Close() {
	b.conn.Close()
	b.srv.Shutdown()
}
