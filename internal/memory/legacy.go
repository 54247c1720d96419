package memory

import (
	"context"
	"encoding/json"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kernel"
)

// ImportLegacy runs at most once per process: if legacyAdapter is
// non-nil and this project's memory table is currently empty, it copies
// every legacy row (id, content, metadata, collection, confidence,
// embedding) across in a single transaction. Rows whose embedding cannot
// be decoded are skipped; any other error aborts the copy, leaves the
// memory table as it was, and is returned to the caller.
func ImportLegacy(ctx context.Context, k *kernel.Kernel, projectKey string, legacyAdapter adapter.Adapter) error {
	var importErr error
	migrationOnce.Do(func() {
		importErr = importLegacyOnce(ctx, k, projectKey, legacyAdapter)
	})
	return importErr
}

func importLegacyOnce(ctx context.Context, k *kernel.Kernel, projectKey string, legacyAdapter adapter.Adapter) error {
	if legacyAdapter == nil {
		return nil
	}
	rows, err := k.Adapter.Query(ctx, `SELECT COUNT(*) AS n FROM memory`)
	if err != nil {
		return err
	}
	if len(rows) > 0 && toInt64(rows[0]["n"]) > 0 {
		return nil
	}
	legacyRows, err := legacyAdapter.Query(ctx, `SELECT id, content, metadata, collection, confidence, embedding FROM memory`)
	if err != nil {
		return err
	}
	var items []kernel.BatchItem
	for _, r := range legacyRows {
		vec, err := legacyAdapter.DecodeVector(r["embedding"])
		if err != nil {
			continue
		}
		metadata := map[string]any{}
		if meta, ok := r["metadata"].(string); ok && meta != "" {
			_ = json.Unmarshal([]byte(meta), &metadata)
		}
		payload := events.MemoryStoredPayload{
			ID:         strOf(r["id"]),
			Content:    strOf(r["content"]),
			Metadata:   metadata,
			Collection: strOf(r["collection"]),
			Confidence: float64FromRow(r["confidence"]),
			Embedding:  events.EncodeEmbedding(vec),
		}
		items = append(items, kernel.BatchItem{Type: events.MemoryStored, ProjectKey: projectKey, Payload: payload})
	}
	if len(items) == 0 {
		return nil
	}
	_, err = k.AppendBatch(ctx, items)
	return err
}

func float64FromRow(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0.7
	}
}
