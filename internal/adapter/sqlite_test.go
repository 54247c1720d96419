package adapter

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func setupTestAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "hive-adapter-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	a, err := OpenSQLite(context.Background(), filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	got := cosineSimilarity(v, v)
	if math.Abs(float64(got)-1.0) > 1e-6 {
		t.Fatalf("expected identical vectors to have similarity 1, got %v", got)
	}
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	got := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(float64(got)) > 1e-6 {
		t.Fatalf("expected orthogonal vectors to have similarity 0, got %v", got)
	}
}

func TestCosineSimilarityOppositeVectors(t *testing.T) {
	got := cosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	if math.Abs(float64(got)+1.0) > 1e-6 {
		t.Fatalf("expected opposite vectors to have similarity -1, got %v", got)
	}
}

func TestCosineSimilarityMismatchedLengthsReturnsNegativeOne(t *testing.T) {
	got := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if got != -1 {
		t.Fatalf("expected mismatched-length vectors to return -1, got %v", got)
	}
}

func TestCosineSimilarityZeroVectorReturnsZero(t *testing.T) {
	got := cosineSimilarity([]float32{0, 0}, []float32{1, 1})
	if got != 0 {
		t.Fatalf("expected a zero vector to return similarity 0, got %v", got)
	}
}

func TestEncodeDecodeVectorRoundTrips(t *testing.T) {
	a := setupTestAdapter(t)
	original := []float32{0.5, -1.25, 3.0, 0.0}

	encoded, err := a.EncodeVector(original)
	if err != nil {
		t.Fatalf("EncodeVector failed: %v", err)
	}
	decoded, err := a.DecodeVector(encoded)
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("expected %d dims, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("dim %d: expected %v, got %v", i, original[i], decoded[i])
		}
	}
}

func TestVectorSearchRanksByCosineSimilarity(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Exec(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, embedding BLOB)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	close, err := a.EncodeVector([]float32{1, 0, 0})
	if err != nil {
		t.Fatalf("EncodeVector failed: %v", err)
	}
	far, err := a.EncodeVector([]float32{0, 1, 0})
	if err != nil {
		t.Fatalf("EncodeVector failed: %v", err)
	}
	if _, err := a.Exec(ctx, `INSERT INTO items (id, embedding) VALUES (?, ?)`, "close", close); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := a.Exec(ctx, `INSERT INTO items (id, embedding) VALUES (?, ?)`, "far", far); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rows, err := a.VectorSearch(ctx, "items", "embedding", []float32{1, 0, 0}, "", nil, 10)
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["id"] != "close" {
		t.Fatalf("expected the identical vector to rank first, got %+v", rows[0])
	}
}
