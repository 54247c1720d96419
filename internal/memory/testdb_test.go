package memory

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

	tmpDir, err := os.MkdirTemp("", "hive-memory-test-*")
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

// stubEmbedder returns a fixed-length vector whose values depend only on
// the text's length, so tests never depend on a reachable Ollama instance.
type stubEmbedder struct {
	fail bool
	dim  int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, context.DeadlineExceeded
	}
	dim := e.dim
	if dim == 0 {
		dim = adapter.VectorDimension
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text)%7) / 7.0
	}
	return vec, nil
}

func (e *stubEmbedder) HealthCheck(ctx context.Context) (bool, string) {
	return !e.fail, "stub"
}
