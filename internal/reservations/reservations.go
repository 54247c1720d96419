// Package reservations implements C6: glob-pattern file claims with
// exclusivity, TTL expiry, conflict detection, idempotent renewal, and
// scoped auto-release.
package reservations

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/ids"
	"github.com/hiveforge/kernel/internal/kerrors"
	"github.com/hiveforge/kernel/internal/kernel"
)

type Service struct {
	Kernel *kernel.Kernel
}

func New(k *kernel.Kernel) *Service {
	return &Service{Kernel: k}
}

// Reservation is the read-side view of one active or historical claim.
type Reservation struct {
	ID          string `json:"id"`
	AgentName   string `json:"agent_name"`
	PathPattern string `json:"path_pattern"`
	Exclusive   bool   `json:"exclusive"`
	Reason      string `json:"reason"`
	AcquiredAt  int64  `json:"acquired_at"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	ReleasedAt  *int64 `json:"released_at,omitempty"`
}

// ReserveArgs are the caller-supplied fields for ReserveFiles.
type ReserveArgs struct {
	AgentName  string
	Paths      []string
	Reason     string
	Exclusive  bool
	TTLSeconds int64
}

// ReserveFiles claims Paths for AgentName, emitting a single
// file_reserved event covering every pattern. Before emitting it checks
// every currently-active reservation in the project for an overlapping
// pattern: a Conflict is raised when an overlap is exclusive on either
// side and the owning agent differs. When an identical (agent, paths,
// exclusive) reservation is already active, the call is a no-op success
// per spec idempotency — it returns the existing rows rather than
// appending a duplicate event.
func (s *Service) ReserveFiles(ctx context.Context, projectKey string, args ReserveArgs) ([]Reservation, error) {
	if args.AgentName == "" {
		return nil, kerrors.New(kerrors.Invalid, "agent_name is required")
	}
	if len(args.Paths) == 0 {
		return nil, kerrors.New(kerrors.Invalid, "at least one path is required")
	}

	active, err := s.activeReservations(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	if existing := matchingActiveSet(active, args); existing != nil {
		return existing, nil
	}

	for _, pattern := range args.Paths {
		for _, r := range active {
			if r.AgentName == args.AgentName {
				continue
			}
			if !globOverlap(pattern, r.PathPattern) {
				continue
			}
			if r.Exclusive || args.Exclusive {
				return nil, kerrors.New(kerrors.Conflict, "reservation overlaps an active claim held by "+r.AgentName).
					WithDetails(map[string]any{"conflicting_agent": r.AgentName, "pattern": r.PathPattern})
			}
		}
	}

	payload := events.FileReservedPayload{
		ID:         ids.NewReservationID(),
		AgentName:  args.AgentName,
		Paths:      args.Paths,
		Exclusive:  args.Exclusive,
		Reason:     args.Reason,
		TTLSeconds: args.TTLSeconds,
	}
	if _, err := s.Kernel.Append(ctx, events.FileReserved, projectKey, payload); err != nil {
		return nil, err
	}
	return s.listByReservationID(ctx, projectKey, payload.ID)
}

// ReleaseFiles releases every active reservation AgentName holds on
// paths (or all of them, when paths is empty).
func (s *Service) ReleaseFiles(ctx context.Context, projectKey, agentName string, paths []string) error {
	if agentName == "" {
		return kerrors.New(kerrors.Invalid, "agent_name is required")
	}
	_, err := s.Kernel.Append(ctx, events.FileReleased, projectKey, events.FileReleasedPayload{
		AgentName: agentName,
		Paths:     paths,
	})
	return err
}

// ScopedReservation claims paths and returns a release func guaranteed
// to run on every exit path from the caller's defer.
func (s *Service) ScopedReservation(ctx context.Context, projectKey string, args ReserveArgs) (func(context.Context) error, error) {
	if _, err := s.ReserveFiles(ctx, projectKey, args); err != nil {
		return nil, err
	}
	return func(releaseCtx context.Context) error {
		return s.ReleaseFiles(releaseCtx, projectKey, args.AgentName, args.Paths)
	}, nil
}

// ExpireTick releases every reservation whose TTL has lapsed as of
// nowMillis. It runs only when a caller invokes it; the daemon does not
// schedule it.
func (s *Service) ExpireTick(ctx context.Context, projectKey string, nowMillis int64) (int, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT DISTINCT agent_name FROM reservations
		WHERE project_key = ? AND released_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?`,
		projectKey, nowMillis)
	if err != nil {
		return 0, kerrors.Wrap(kerrors.Transient, "query expired reservations", err)
	}
	count := 0
	for _, r := range rows {
		agent, _ := r["agent_name"].(string)
		if agent == "" {
			continue
		}
		pathRows, err := s.Kernel.Adapter.Query(ctx, `SELECT path_pattern FROM reservations
			WHERE project_key = ? AND agent_name = ? AND released_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?`,
			projectKey, agent, nowMillis)
		if err != nil {
			return count, kerrors.Wrap(kerrors.Transient, "query expired patterns", err)
		}
		var patterns []string
		for _, pr := range pathRows {
			if p, ok := pr["path_pattern"].(string); ok {
				patterns = append(patterns, p)
			}
		}
		if len(patterns) == 0 {
			continue
		}
		if err := s.ReleaseFiles(ctx, projectKey, agent, patterns); err != nil {
			return count, err
		}
		count += len(patterns)
	}
	return count, nil
}

// ListActive returns every currently-active reservation in the project.
func (s *Service) ListActive(ctx context.Context, projectKey string) ([]Reservation, error) {
	return s.activeReservations(ctx, projectKey)
}

func (s *Service) activeReservations(ctx context.Context, projectKey string) ([]Reservation, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT id, agent_name, path_pattern, exclusive, reason, acquired_at, expires_at, released_at
		FROM reservations WHERE project_key = ? AND released_at IS NULL AND (expires_at IS NULL OR expires_at > ?)`,
		projectKey, time.Now().UnixMilli())
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query active reservations", err)
	}
	out := make([]Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToReservation(r))
	}
	return out, nil
}

func (s *Service) listByReservationID(ctx context.Context, projectKey, id string) ([]Reservation, error) {
	rows, err := s.Kernel.Adapter.Query(ctx, `SELECT id, agent_name, path_pattern, exclusive, reason, acquired_at, expires_at, released_at
		FROM reservations WHERE project_key = ? AND id = ?`, projectKey, id)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Transient, "query reservation", err)
	}
	out := make([]Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToReservation(r))
	}
	return out, nil
}

// matchingActiveSet returns the existing rows when every requested path
// is already actively held by args.AgentName with the same exclusivity,
// satisfying the idempotent-retry contract; nil otherwise.
func matchingActiveSet(active []Reservation, args ReserveArgs) []Reservation {
	held := make(map[string]Reservation, len(active))
	for _, r := range active {
		if r.AgentName == args.AgentName && r.Exclusive == args.Exclusive {
			held[r.PathPattern] = r
		}
	}
	matched := make([]Reservation, 0, len(args.Paths))
	for _, p := range args.Paths {
		r, ok := held[p]
		if !ok {
			return nil
		}
		matched = append(matched, r)
	}
	return matched
}

// globOverlap reports whether any path string could match both a and b,
// using the conservative syntactic rule: "**" matches any remaining
// subpath, a segment containing "*" (a bare "*" or e.g. "*.go") matches
// within that one segment per path.Match, two segments that both
// contain "*" are taken to overlap, and everything else must match
// literally segment-by-segment.
func globOverlap(a, b string) bool {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for len(as) > 0 && len(bs) > 0 {
		sa, sb := as[0], bs[0]
		if sa == "**" || sb == "**" {
			return true
		}
		bothWild := strings.Contains(sa, "*") && strings.Contains(sb, "*")
		matchA, _ := path.Match(sa, sb)
		matchB, _ := path.Match(sb, sa)
		if sa != sb && !bothWild && !matchA && !matchB {
			return false
		}
		as, bs = as[1:], bs[1:]
	}
	return len(as) == 0 && len(bs) == 0
}

func rowToReservation(r map[string]any) Reservation {
	res := Reservation{
		AgentName:   str(r["agent_name"]),
		PathPattern: str(r["path_pattern"]),
		Reason:      str(r["reason"]),
	}
	if id, ok := r["id"].(string); ok {
		res.ID = id
	}
	switch v := r["exclusive"].(type) {
	case bool:
		res.Exclusive = v
	case int64:
		res.Exclusive = v != 0
	}
	res.AcquiredAt = i64(r["acquired_at"])
	if r["expires_at"] != nil {
		v := i64(r["expires_at"])
		res.ExpiresAt = &v
	}
	if r["released_at"] != nil {
		v := i64(r["released_at"])
		res.ReleasedAt = &v
	}
	return res
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func i64(v any) int64 {
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
