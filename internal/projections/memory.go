package projections

import (
	"context"
	"encoding/json"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/events"
)

func init() {
	register(events.MemoryStored, applyMemoryStored)
	register(events.MemoryRemoved, applyMemoryRemoved)
	register(events.MemoryValidated, applyMemoryValidated)
}

func applyMemoryStored(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MemoryStoredPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	vec, err := events.DecodeEmbedding(p.Embedding)
	if err != nil {
		return err
	}
	embedding, err := tx.EncodeVector(vec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO memory (id, content, metadata, collection, created_at, confidence, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Content, string(metadata), p.Collection, e.Timestamp, p.Confidence, embedding)
	return err
}

func applyMemoryRemoved(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MemoryRemovedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM memory WHERE id = ?`, p.ID)
	return err
}

func applyMemoryValidated(ctx context.Context, tx adapter.Tx, e events.Event) error {
	var p events.MemoryValidatedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	// Validation nudges confidence toward 1.0 without pinning it there,
	// so repeated validation over time still interacts with decay
	// (internal/memory's confidence-to-half-life adjustment) instead of
	// permanently overriding it.
	_, err := tx.Exec(ctx, `UPDATE memory SET confidence = MIN(1.0, confidence + 0.1) WHERE id = ?`, p.ID)
	return err
}
