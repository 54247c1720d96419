package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/schema"
)

func setupTestKernel(t *testing.T) *kernel.Kernel {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "hive-replay-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	ctx := context.Background()
	a, err := adapter.OpenSQLite(ctx, filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite adapter: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if err := schema.Run(ctx, a); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return kernel.New(a)
}
