package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/kerrors"
)

func TestEffectiveConfidenceZeroAgeReturnsStored(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	got := EffectiveConfidence(0.9, now.UnixMilli(), now)
	if got != 0.9 {
		t.Fatalf("expected zero-age confidence to be unchanged, got %v", got)
	}
}

func TestEffectiveConfidenceDecaysWithAge(t *testing.T) {
	created := time.UnixMilli(1_700_000_000_000)
	now := created.Add(45 * 24 * time.Hour)

	// at storedConfidence 0.0, half-life is 45 days: one half-life elapsed.
	got := EffectiveConfidence(0.0, created.UnixMilli(), now)
	if math.Abs(got-0.0) > 1e-9 {
		t.Fatalf("expected confidence 0 to stay 0 regardless of age, got %v", got)
	}

	got = EffectiveConfidence(1.0, created.UnixMilli(), now)
	// half-life at confidence 1.0 is 135 days; 45 days is a third of a half-life.
	want := 1.0 * math.Pow(0.5, 45.0/135.0)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected decayed confidence %v, got %v", want, got)
	}
}

func TestEffectiveConfidenceLongerAgeDecaysMore(t *testing.T) {
	created := time.UnixMilli(1_700_000_000_000)
	now30 := created.Add(30 * 24 * time.Hour)
	now90 := created.Add(90 * 24 * time.Hour)

	c30 := EffectiveConfidence(0.5, created.UnixMilli(), now30)
	c90 := EffectiveConfidence(0.5, created.UnixMilli(), now90)
	if c90 >= c30 {
		t.Fatalf("expected longer-aged confidence (%v) to be lower than shorter-aged (%v)", c90, c30)
	}
}

func TestStoreRequiresContent(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	_, err := svc.Store(ctx, "proj", StoreArgs{Content: ""})
	if !kerrors.Is(err, kerrors.Invalid) {
		t.Fatalf("expected Invalid for empty content, got %v", err)
	}
}

func TestStoreAndGetDefaultsCollectionAndConfidence(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	id, err := svc.Store(ctx, "proj", StoreArgs{Content: "remember this fact"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	m, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Collection != "default" {
		t.Errorf("expected default collection, got %q", m.Collection)
	}
	if m.Confidence != 0.7 {
		t.Errorf("expected default confidence 0.7, got %v", m.Confidence)
	}
	if m.Content != "remember this fact" {
		t.Errorf("expected content to round-trip, got %q", m.Content)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "mem-does-not-exist")
	if !kerrors.Is(err, kerrors.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStoreFailsWhenEmbedderUnavailable(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{fail: true})
	ctx := context.Background()

	_, err := svc.Store(ctx, "proj", StoreArgs{Content: "unreachable embedder"})
	if err == nil {
		t.Fatal("expected Store to fail when the embedder is unreachable")
	}
}

func TestFindFallsBackToFTSWhenEmbedderFails(t *testing.T) {
	k := setupTestKernel(t)
	good := New(k, &stubEmbedder{})
	ctx := context.Background()

	if _, err := good.Store(ctx, "proj", StoreArgs{Content: "the quick brown fox"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	broken := New(k, &stubEmbedder{fail: true})
	results, err := broken.Find(ctx, "proj", FindArgs{Query: "quick"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected FTS fallback to find the stored memory")
	}
	if results[0].MatchType != "fts" {
		t.Errorf("expected match type fts, got %q", results[0].MatchType)
	}
}

func TestFindExplicitFTSSkipsEmbedder(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: "hello world"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	results, err := svc.Find(ctx, "proj", FindArgs{Query: "hello", FTS: true})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(results) == 0 || results[0].MatchType != "fts" {
		t.Fatalf("expected explicit FTS search to return fts-matched results, got %+v", results)
	}
}

func TestFindPreviewTruncatesContentUnlessExpanded(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: string(long)}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	results, err := svc.Find(ctx, "proj", FindArgs{Query: string(long), FTS: true, PreviewChars: 50})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if len(results[0].Memory.Content) != 50 {
		t.Errorf("expected preview truncated to 50 chars, got %d", len(results[0].Memory.Content))
	}

	expanded, err := svc.Find(ctx, "proj", FindArgs{Query: string(long), FTS: true, Expand: true})
	if err != nil {
		t.Fatalf("Find (expanded) failed: %v", err)
	}
	if len(expanded[0].Memory.Content) != 500 {
		t.Errorf("expected expanded content to be full length, got %d", len(expanded[0].Memory.Content))
	}
}

func TestRemoveDeletesMemory(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	id, err := svc.Store(ctx, "proj", StoreArgs{Content: "to be removed"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := svc.Remove(ctx, "proj", id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := svc.Get(ctx, id); !kerrors.Is(err, kerrors.NotFound) {
		t.Fatalf("expected NotFound after Remove, got %v", err)
	}
}

func TestListFiltersByCollection(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: "a", Collection: "notes"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: "b", Collection: "facts"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	notes, err := svc.List(ctx, "notes")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Collection != "notes" {
		t.Fatalf("expected exactly one memory in notes collection, got %+v", notes)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List (all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 memories across all collections, got %d", len(all))
	}
}

func TestStatsCountsByCollection(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: "a", Collection: "notes"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := svc.Store(ctx, "proj", StoreArgs{Content: "b", Collection: "notes"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("expected total count 2, got %d", stats.TotalCount)
	}
	if stats.CountByCollection["notes"] != 2 {
		t.Errorf("expected 2 memories in notes collection, got %d", stats.CountByCollection["notes"])
	}
}

func TestValidateFailsForUnknownID(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	err := svc.Validate(ctx, "proj", "mem-does-not-exist")
	if !kerrors.Is(err, kerrors.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestValidateSucceedsForKnownID(t *testing.T) {
	k := setupTestKernel(t)
	svc := New(k, &stubEmbedder{})
	ctx := context.Background()

	id, err := svc.Store(ctx, "proj", StoreArgs{Content: "validate me"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := svc.Validate(ctx, "proj", id); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestImportLegacyRunsOncePerProcess(t *testing.T) {
	resetMigrationCheck()
	defer resetMigrationCheck()

	k := setupTestKernel(t)
	ctx := context.Background()

	legacy := legacyAdapterWithOneRow(t, ctx)
	defer legacy.Close()

	if err := ImportLegacy(ctx, k, "proj", legacy); err != nil {
		t.Fatalf("first ImportLegacy failed: %v", err)
	}

	svc := New(k, &stubEmbedder{})
	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the legacy row to be imported exactly once, got %d rows", len(all))
	}

	// A second call must be a no-op: migrationOnce already fired.
	if err := ImportLegacy(ctx, k, "proj", legacy); err != nil {
		t.Fatalf("second ImportLegacy failed: %v", err)
	}
	all, err = svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected no duplicate import on second call, got %d rows", len(all))
	}
}

func legacyAdapterWithOneRow(t *testing.T, ctx context.Context) adapter.Adapter {
	t.Helper()
	tmpDir := t.TempDir()
	a, err := adapter.OpenSQLite(ctx, tmpDir+"/legacy.db")
	if err != nil {
		t.Fatalf("failed to open legacy sqlite adapter: %v", err)
	}
	if _, err := a.Exec(ctx, `CREATE TABLE memory (
		id TEXT PRIMARY KEY, content TEXT, metadata TEXT, collection TEXT,
		confidence REAL, embedding BLOB
	)`); err != nil {
		t.Fatalf("failed to create legacy table: %v", err)
	}
	legacyVec := make([]float32, adapter.VectorDimension)
	legacyVec[0], legacyVec[1], legacyVec[2] = 0.1, 0.2, 0.3
	encoded, err := a.EncodeVector(legacyVec)
	if err != nil {
		t.Fatalf("failed to encode legacy vector: %v", err)
	}
	if _, err := a.Exec(ctx, `INSERT INTO memory (id, content, metadata, collection, confidence, embedding) VALUES (?, ?, ?, ?, ?, ?)`,
		"legacy-1", "legacy fact", "{}", "default", 0.8, encoded); err != nil {
		t.Fatalf("failed to insert legacy row: %v", err)
	}
	return a
}
