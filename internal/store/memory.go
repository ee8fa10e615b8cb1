package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// MemoryStore is an in-process PointStore with a time-sorted retrieval
// index. It backs tests and single-node deployments; production setups use
// the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	points []domain.Point
	byTime []int // positions sorted by (time_unix, index)
	seen   map[string]struct{}

	// digest is the running XOR of record content hashes, making
	// DataIdentity sensitive to content and insensitive to ingest order.
	digest [32]byte
}

// NewMemoryStore creates an empty in-memory point store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// InsertBatch appends points not already present (by content hash) and
// returns the number inserted.
func (s *MemoryStore) InsertBatch(_ context.Context, points []domain.Point) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range points {
		h := ContentHash(p)
		if _, dup := s.seen[h]; dup {
			continue
		}
		s.seen[h] = struct{}{}
		raw, err := hex.DecodeString(h)
		if err == nil {
			for i := range s.digest {
				s.digest[i] ^= raw[i]
			}
		}
		s.points = append(s.points, p)
		s.byTime = append(s.byTime, len(s.points)-1)
		inserted++
	}

	sort.SliceStable(s.byTime, func(i, j int) bool {
		a, b := s.byTime[i], s.byTime[j]
		if s.points[a].TimeUnix != s.points[b].TimeUnix {
			return s.points[a].TimeUnix < s.points[b].TimeUnix
		}
		return a < b
	})
	return inserted, nil
}

// Query evaluates the predicate conjunction. time_unix predicates narrow
// the sorted time index first so the scan covers only the matching window;
// the remaining predicates are applied to that window.
func (s *MemoryStore) Query(_ context.Context, preds []domain.Predicate) ([]int, error) {
	if err := domain.ValidatePredicates(preds); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.timeWindow(preds)

	var out []int
	for _, pos := range s.byTime[lo:hi] {
		pt := s.points[pos]
		ok := true
		for _, p := range preds {
			if !p.Matches(pt) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

// timeWindow returns the [lo, hi) slice bounds of byTime consistent with
// every time_unix predicate. Open and closed bounds are honored literally.
func (s *MemoryStore) timeWindow(preds []domain.Predicate) (int, int) {
	lo, hi := 0, len(s.byTime)
	for _, p := range preds {
		if p.Field != "time_unix" {
			continue
		}
		switch p.Op {
		case domain.OpGE:
			lo = max(lo, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix >= p.Value
			}))
		case domain.OpGT:
			lo = max(lo, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix > p.Value
			}))
		case domain.OpLE:
			hi = min(hi, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix > p.Value
			}))
		case domain.OpLT:
			hi = min(hi, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix >= p.Value
			}))
		case domain.OpEQ:
			lo = max(lo, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix >= p.Value
			}))
			hi = min(hi, sort.Search(len(s.byTime), func(i int) bool {
				return s.points[s.byTime[i]].TimeUnix > p.Value
			}))
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// Fetch returns the point at the given index.
func (s *MemoryStore) Fetch(_ context.Context, index int) (domain.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.points) {
		return domain.Point{}, fmt.Errorf("point index %d out of range", index)
	}
	return s.points[index], nil
}

// FetchBatch returns the points at the given indices, in the given order.
func (s *MemoryStore) FetchBatch(ctx context.Context, indices []int) ([]domain.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.points) {
			return nil, fmt.Errorf("point index %d out of range", idx)
		}
		out[i] = s.points[idx]
	}
	return out, nil
}

// DataIdentity combines the dataset summary with the content digest.
func (s *MemoryStore) DataIdentity(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	minTime, maxTime := 0.0, 0.0
	if len(s.byTime) > 0 {
		minTime = s.points[s.byTime[0]].TimeUnix
		maxTime = s.points[s.byTime[len(s.byTime)-1]].TimeUnix
	}
	return identityString(len(s.points), minTime, maxTime) + hex.EncodeToString(s.digest[:8]), nil
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
