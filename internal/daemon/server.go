package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/cells"
	"github.com/hiveforge/kernel/internal/config"
	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/memory"
	"github.com/hiveforge/kernel/internal/messaging"
	"github.com/hiveforge/kernel/internal/replay"
	"github.com/hiveforge/kernel/internal/reservations"
	"github.com/hiveforge/kernel/internal/schema"
	"github.com/hiveforge/kernel/internal/stream"
)

// Runtime bundles everything one running daemon owns: the storage
// adapter, the kernel, every domain service, and the stream bus. Built
// once at startup and torn down together on shutdown.
type Runtime struct {
	Adapter      adapter.Adapter
	Kernel       *kernel.Kernel
	Bus          *stream.Bus
	Messaging    *messaging.Service
	Reservations *reservations.Service
	Cells        *cells.Service
	Memory       *memory.Service
	Replay       *replay.Service
	StreamServer *stream.Server
	ProjectKey   string
}

// Build opens the configured storage backend, runs migrations, and wires
// every domain service against one kernel. Mirrors the teacher's own
// daemon wiring order in cmd/bd: open storage, migrate, construct
// long-lived services, THEN start listening.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	var a adapter.Adapter
	var err error
	switch cfg.Backend {
	case "postgres":
		a, err = adapter.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		a, err = adapter.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage backend %q: %w", cfg.Backend, err)
	}

	if err := schema.Run(ctx, a); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	bus, err := stream.NewEmbeddedBus(cfg.NATSPort)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start embedded event bus: %w", err)
	}

	k := kernel.New(a)
	k.Publisher = bus

	var embedder memory.Embedder
	if ollama, embErr := memory.NewOllamaEmbedder(cfg.EmbedderModel); embErr != nil {
		log.Printf("embedder unavailable, memory search falls back to full-text only: %v", embErr)
	} else {
		embedder = ollama
	}

	rt := &Runtime{
		Adapter:      a,
		Kernel:       k,
		Bus:          bus,
		Messaging:    messaging.New(k, cfg.InboxBodyChars),
		Reservations: reservations.New(k),
		Cells:        cells.New(k, "hv", 8),
		Memory:       memory.New(k, embedder),
		Replay:       replay.New(k),
		StreamServer: stream.NewServer(k, bus),
		ProjectKey:   cfg.ProjectKey,
	}
	return rt, nil
}

func (rt *Runtime) Close() {
	rt.Bus.Close()
	_ = rt.Adapter.Close()
}

// Serve runs the daemon's HTTP listener (durable stream + healthz) on
// either a Unix socket or a TCP address, blocking until ctx is
// cancelled or a signal arrives, mirroring the teacher's own
// signal-driven shutdown in daemon_server.go/daemon_event_loop.go.
func Serve(ctx context.Context, cfg *config.Config, rt *Runtime, logFile string) error {
	if logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	engine := rt.StreamServer.Engine
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	var listener net.Listener
	var err error
	network := "tcp"
	addr := cfg.HTTPAddr
	if cfg.SocketPath != "" {
		network = "unix"
		addr = cfg.SocketPath
		_ = os.Remove(addr)
	}
	listener, err = net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", network, addr, err)
	}
	if network == "unix" {
		_ = os.Chmod(addr, 0o600)
	}

	httpServer := &http.Server{Handler: engine}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("daemon listening on %s %s", network, addr)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down")
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
