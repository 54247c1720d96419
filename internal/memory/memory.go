// Package memory implements C8: semantic memory storage with vector and
// full-text retrieval, confidence decay, and a one-shot legacy import.
package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/ids"
	"github.com/hiveforge/kernel/internal/kerrors"
	"github.com/hiveforge/kernel/internal/kernel"
)

type Service struct {
	Kernel   *kernel.Kernel
	Embedder Embedder
}

func New(k *kernel.Kernel, embedder Embedder) *Service {
	return &Service{Kernel: k, Embedder: embedder}
}

// Memory is the read-side view of one stored fact.
type Memory struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Collection string         `json:"collection"`
	CreatedAt  int64          `json:"created_at"`
	Confidence float64        `json:"confidence"`
}

// StoreArgs are the caller-supplied fields for Store.
type StoreArgs struct {
	Content    string
	Metadata   map[string]any
	Collection string
	Confidence float64
}

// Store embeds content via the configured Embedder and writes the
// memory row and its embedding in one transaction. Fails distinguishably
// (Unavailable) when the embedder cannot be reached.
func (s *Service) Store(ctx context.Context, projectKey string, args StoreArgs) (string, error) {
	if args.Content == "" {
		return "", kerrors.New(kerrors.Invalid, "content is required")
	}
	if args.Collection == "" {
		args.Collection = "default"
	}
	if args.Confidence == 0 {
		args.Confidence = 0.7
	}
	if s.Embedder == nil {
		return "", kerrors.New(kerrors.Unavailable, "no embedder configured")
	}
	vec, err := s.Embedder.Embed(ctx, args.Content)
	if err != nil {
		return "", err
	}
	id := ids.NewMemoryID()
	payload := events.MemoryStoredPayload{
		ID: id, Content: args.Content, Metadata: args.Metadata,
		Collection: args.Collection, Confidence: args.Confidence,
		Embedding: events.EncodeEmbedding(vec),
	}
	if _, err := s.Kernel.Append(ctx, events.MemoryStored, projectKey, payload); err != nil {
		return "", err
	}
	return id, nil
}

// Result is one ranked hit from Find.
type Result struct {
	Memory    Memory  `json:"memory"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

// FindArgs narrows Find.
type FindArgs struct {
	Query      string
	Limit      int
	Threshold  float64
	Collection string
	Expand     bool
	FTS        bool
	// PreviewChars bounds content length when Expand is false.
	PreviewChars int
}

// Find ranks memories against query. It uses full-text search when FTS
// is requested or the embedder is unreachable, and vector similarity
// otherwise.
func (s *Service) Find(ctx context.Context, projectKey string, args FindArgs) ([]Result, error) {
	if args.Limit <= 0 {
		args.Limit = 10
	}
	if args.Threshold == 0 {
		args.Threshold = 0.3
	}
	if args.PreviewChars <= 0 {
		args.PreviewChars = 240
	}

	useFTS := args.FTS || s.Embedder == nil
	var vec []float32
	if !useFTS {
		v, err := s.Embedder.Embed(ctx, args.Query)
		if err != nil {
			useFTS = true
		} else {
			vec = v
		}
	}

	var rows []map[string]any
	var matchType string
	var err error
	if useFTS {
		matchType = "fts"
		rows, err = s.Kernel.Adapter.FTSSearch(ctx, "memory", "content", args.Query, args.Limit)
	} else {
		matchType = "vector"
		where, whereArgs := collectionWhere(projectKey, args.Collection)
		rows, err = s.Kernel.Adapter.VectorSearch(ctx, "memory", "embedding", vec, where, whereArgs, args.Limit)
	}
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "search memory", err)
	}

	now := time.Now()
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		score := scoreOf(r, matchType)
		if matchType == "vector" && score < args.Threshold {
			continue
		}
		m := rowToMemory(r)
		score *= EffectiveConfidence(m.Confidence, m.CreatedAt, now)
		if !args.Expand && len(m.Content) > args.PreviewChars {
			m.Content = m.Content[:args.PreviewChars]
		}
		out = append(out, Result{Memory: m, Score: score, MatchType: matchType})
	}
	// Confidence decay can reorder the page the SQL query already ranked
	// by raw score, so the final sort happens here, post-weighting.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func collectionWhere(projectKey, collection string) (string, []any) {
	if collection == "" {
		return "", nil
	}
	return "collection = ?", []any{collection}
}

func scoreOf(r map[string]any, matchType string) float64 {
	v := r["score"]
	if matchType == "fts" {
		v = r["rank"]
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

// Get returns one memory by id.
func (s *Service) Get(ctx context.Context, id string) (*Memory, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT id, content, metadata, collection, created_at, confidence FROM memory WHERE id = ?`, id)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query memory", err)
	}
	if len(rows) == 0 {
		return nil, kerrors.New(kerrors.NotFound, "memory not found: "+id)
	}
	m := rowToMemory(rows[0])
	return &m, nil
}

// Remove deletes a memory.
func (s *Service) Remove(ctx context.Context, projectKey, id string) error {
	_, err := s.Kernel.Append(ctx, events.MemoryRemoved, projectKey, events.MemoryRemovedPayload{ID: id})
	return err
}

// List returns every memory in collection (or every collection, when
// empty), ordered newest first.
func (s *Service) List(ctx context.Context, collection string) ([]Memory, error) {
	query := `SELECT id, content, metadata, collection, created_at, confidence FROM memory`
	var args []any
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.Kernel.Adapter.Query(ctx, query, args...)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "list memory", err)
	}
	out := make([]Memory, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToMemory(r))
	}
	return out, nil
}

// Stats summarises the memory store.
type Stats struct {
	TotalCount        int            `json:"total_count"`
	CountByCollection map[string]int `json:"count_by_collection"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT collection, COUNT(*) AS n FROM memory GROUP BY collection`)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query memory stats", err)
	}
	stats := &Stats{CountByCollection: map[string]int{}}
	for _, r := range rows {
		n := int(toInt64(r["n"]))
		stats.CountByCollection[strOf(r["collection"])] = n
		stats.TotalCount += n
	}
	return stats, nil
}

// Validate resets id's decay timer by nudging confidence up, emitting a
// memory-validated event. Fails NotFound when id is unknown.
func (s *Service) Validate(ctx context.Context, projectKey, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.Kernel.Append(ctx, events.MemoryValidated, projectKey, events.MemoryValidatedPayload{ID: id})
	return err
}

// EffectiveConfidence applies read-time decay: confidence decays
// exponentially with a half-life that itself depends on the stored
// confidence, linearly interpolated from 45 days at confidence 0.0 to
// 135 days at confidence 1.0. This never mutates the stored row —
// Validate is the only way to reset the timer.
func EffectiveConfidence(storedConfidence float64, createdAtMillis int64, now time.Time) float64 {
	halfLifeDays := 45 + 90*storedConfidence
	ageDays := now.Sub(time.UnixMilli(createdAtMillis)).Hours() / 24
	if ageDays <= 0 {
		return storedConfidence
	}
	decay := math.Pow(0.5, ageDays/halfLifeDays)
	return storedConfidence * decay
}

func rowToMemory(r map[string]any) Memory {
	m := Memory{
		ID:         strOf(r["id"]),
		Content:    strOf(r["content"]),
		Collection: strOf(r["collection"]),
		CreatedAt:  toInt64(r["created_at"]),
	}
	if meta, ok := r["metadata"].(string); ok && meta != "" {
		_ = json.Unmarshal([]byte(meta), &m.Metadata)
	}
	switch c := r["confidence"].(type) {
	case float64:
		m.Confidence = c
	case float32:
		m.Confidence = float64(c)
	}
	return m
}

func strOf(v any) string {
	s, _ := v.(string)
	return s
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// migrationOnce guards the process-wide legacy-import flag: the first
// ImportLegacy call in this process runs the check (and the import, when
// a legacy adapter is given and the memory table is empty); every later
// call skips it, whatever the first call found. Opening an adapter does
// not call ImportLegacy.
var migrationOnce sync.Once

// resetMigrationCheck exists strictly for tests that need to exercise
// ImportLegacy more than once per process.
func resetMigrationCheck() {
	migrationOnce = sync.Once{}
}
