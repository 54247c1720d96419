// Package daemon implements the optional long-running server process:
// it holds the storage adapter open and serves over HTTP, on a Unix
// socket when a socket path is configured and on TCP otherwise. The
// registry file records running daemons; its read-modify-write is
// guarded with gofrs/flock, adapted from the teacher's own
// internal/daemon package and its custom file-lock helper. No lock keeps
// a second daemon from starting, and the hivectl commands other than
// serve open storage directly instead of contacting a daemon.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// RegistryEntry is one running daemon's bookkeeping record.
type RegistryEntry struct {
	ProjectKey string    `json:"project_key"`
	WorkspaceRoot string `json:"workspace_root"`
	SocketPath string    `json:"socket_path"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
}

// Registry is the process-global record of running daemons, stored at
// ~/.hive/registry.json and guarded by a sibling lock file so concurrent
// daemons starting up don't race on the read-modify-write.
type Registry struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

func NewRegistry() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	hiveDir := filepath.Join(home, ".hive")
	if err := os.MkdirAll(hiveDir, 0o750); err != nil {
		return nil, fmt.Errorf("create ~/.hive: %w", err)
	}
	return &Registry{
		path:     filepath.Join(hiveDir, "registry.json"),
		lockPath: filepath.Join(hiveDir, "registry.lock"),
	}, nil
}

func (r *Registry) withLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fl := flock.New(r.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

func (r *Registry) readEntriesLocked() ([]RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted registry just means daemons get rediscovered; treat
		// as empty rather than failing every subsequent command.
		return nil, nil
	}
	return entries, nil
}

func (r *Registry) writeEntriesLocked(entries []RegistryEntry) error {
	if entries == nil {
		entries = []RegistryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), "registry-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp registry file: %w", err)
	}
	return nil
}

// Register records a running daemon, replacing any stale entry for the
// same workspace or PID.
func (r *Registry) Register(entry RegistryEntry) error {
	return r.withLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.WorkspaceRoot != entry.WorkspaceRoot && e.PID != entry.PID {
				filtered = append(filtered, e)
			}
		}
		filtered = append(filtered, entry)
		return r.writeEntriesLocked(filtered)
	})
}

// Unregister removes the entry for workspaceRoot/pid, if present.
func (r *Registry) Unregister(workspaceRoot string, pid int) error {
	return r.withLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		var filtered []RegistryEntry
		for _, e := range entries {
			if e.WorkspaceRoot != workspaceRoot && e.PID != pid {
				filtered = append(filtered, e)
			}
		}
		return r.writeEntriesLocked(filtered)
	})
}

// List returns all registered daemons, pruning entries whose process has
// since died.
func (r *Registry) List() ([]RegistryEntry, error) {
	var alive []RegistryEntry
	err := r.withLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if isProcessAlive(e.PID) {
				alive = append(alive, e)
			}
		}
		if len(alive) != len(entries) {
			return r.writeEntriesLocked(alive)
		}
		return nil
	})
	return alive, err
}
