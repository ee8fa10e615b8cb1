// Package dispatch fans the index+stitch stages out across worker
// goroutines by time partition and reconciles strikes at partition
// boundaries before the combiner runs.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
	"github.com/CorniiDog/lightning-research-application/internal/stitch"
)

// PartitionComputeFailure reports that a worker partition failed. The
// dispatcher cancels the remaining partitions and surfaces this single
// aggregate error instead of a partial strike set, which would silently
// under-count points near unexamined boundaries.
type PartitionComputeFailure struct {
	Partition int
	Err       error
}

func (e *PartitionComputeFailure) Error() string {
	return fmt.Sprintf("partition %d failed: %v", e.Partition, e.Err)
}

func (e *PartitionComputeFailure) Unwrap() error { return e.Err }

// Dispatcher runs the stitching stage across a fixed worker count.
type Dispatcher struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a dispatcher. A non-positive worker count means one worker
// per available CPU.
func New(workers int, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Dispatcher{workers: workers, logger: logger, metrics: metrics}
}

// span is a half-open position range [lo, hi) of the point set.
type span struct {
	lo, hi int
}

// Run partitions the point set into time-contiguous chunks, stitches each
// chunk concurrently, and reconciles the per-chunk strike lists at the
// boundaries. Workers share only the immutable point set; each returns its
// own strike list and the join happens before reconciliation. The first
// worker failure cancels the rest.
//
// Chunk cuts are placed only at time gaps wider than
// MaxLightningTimeThreshold, the same segmentation the stitcher's
// inactivity rule imposes, so no strike can span a cut and the result is
// identical for any worker count. The reconciliation pass re-applies the
// stitching union rule to boundary-adjacent strikes as a consistency
// backstop.
func (d *Dispatcher) Run(ctx context.Context, ps *domain.PointSet, params domain.Parameters) ([]stitch.RawStrike, error) {
	if ps.Len() == 0 {
		return nil, nil
	}

	chunks := d.partition(ps, params.MaxLightningTimeThreshold)
	results := make([][]stitch.RawStrike, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, c := range chunks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PartitionComputeFailure{Partition: i, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			start := time.Now()
			strikes, serr := stitch.Stitch(gctx, ps, params, c.lo, c.hi)
			if serr != nil {
				d.metrics.PartitionsFailed.Inc()
				return &PartitionComputeFailure{Partition: i, Err: serr}
			}
			d.metrics.PartitionDuration.Observe(time.Since(start).Seconds())
			results[i] = strikes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	strikes := reconcile(ps, results, params)
	d.logger.Debug("dispatch complete",
		"points", ps.Len(), "partitions", len(chunks), "strikes", len(strikes))
	return strikes, nil
}

// partition splits the point set into contiguous spans, cutting only at
// segment boundaries (time gaps wider than the threshold). A chunk closes
// once it has absorbed at least a per-worker budget of points, so the
// spans balance without ever splitting a gap-free segment; a single
// gap-free dataset stays one span regardless of worker count.
func (d *Dispatcher) partition(ps *domain.PointSet, threshold float64) []span {
	n := ps.Len()
	if d.workers == 1 || n <= d.workers {
		return []span{{lo: 0, hi: n}}
	}

	budget := (n + d.workers - 1) / d.workers

	var chunks []span
	lo := 0
	for i := 1; i < n; i++ {
		if ps.Times[i]-ps.Times[i-1] > threshold && i-lo >= budget {
			chunks = append(chunks, span{lo: lo, hi: i})
			lo = i
		}
	}
	chunks = append(chunks, span{lo: lo, hi: n})
	return chunks
}

// reconcile concatenates per-chunk strike lists and re-applies the
// stitching union rule across chunk boundaries: strikes from different
// chunks merge when they share a point or when any cross pair of points
// satisfies the distance, time, and speed thresholds.
func reconcile(ps *domain.PointSet, results [][]stitch.RawStrike, params domain.Parameters) []stitch.RawStrike {
	if len(results) == 1 {
		return results[0]
	}

	var all []stitch.RawStrike
	chunkOf := []int{}
	for ci, rs := range results {
		all = append(all, rs...)
		for range rs {
			chunkOf = append(chunkOf, ci)
		}
	}
	if len(all) < 2 {
		return all
	}

	merged := false
	ds := newStrikeSet(len(all))
	threshold := params.MaxLightningTimeThreshold
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if chunkOf[i] == chunkOf[j] || ds.find(i) == ds.find(j) {
				continue
			}
			// Only boundary-adjacent strikes can link.
			if all[i].First-all[j].Last > threshold || all[j].First-all[i].Last > threshold {
				continue
			}
			if strikesLinked(ps, all[i], all[j], params) {
				ds.union(i, j)
				merged = true
			}
		}
	}
	if !merged {
		sorted := make([]stitch.RawStrike, len(all))
		copy(sorted, all)
		sortByStart(sorted)
		return sorted
	}

	groups := make(map[int][]int)
	roots := []int{}
	for i := range all {
		r := ds.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	sort.Ints(roots)

	out := make([]stitch.RawStrike, 0, len(roots))
	for _, r := range roots {
		out = append(out, mergeGroup(all, groups[r]))
	}
	sortByStart(out)
	return out
}

// strikesLinked reports whether two strikes share a position or contain a
// cross pair of points satisfying the stitching thresholds.
func strikesLinked(ps *domain.PointSet, a, b stitch.RawStrike, params domain.Parameters) bool {
	if sharePosition(a.Positions, b.Positions) {
		return true
	}

	maxDistSq := params.MaxLightningDist * params.MaxLightningDist
	minSpeedSq := params.MinLightningSpeed * params.MinLightningSpeed
	maxSpeedSq := params.MaxLightningSpeed * params.MaxLightningSpeed

	for _, p := range a.Positions {
		for _, q := range b.Positions {
			dt := ps.Times[p] - ps.Times[q]
			if dt < 0 {
				dt = -dt
			}
			if dt > params.MaxLightningTimeThreshold {
				continue
			}
			distSq := ps.DistSq(p, q)
			if distSq > maxDistSq {
				continue
			}
			dtSq := dt * dt
			if dtSq < 1e-5 {
				dtSq = 1e-5
			}
			speedSq := distSq / dtSq
			if speedSq >= minSpeedSq && speedSq <= maxSpeedSq {
				return true
			}
		}
	}
	return false
}

// sharePosition reports whether two sorted position lists intersect.
func sharePosition(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// mergeGroup unions the member lists of the indexed strikes.
func mergeGroup(all []stitch.RawStrike, members []int) stitch.RawStrike {
	positions := []int{}
	for _, i := range members {
		positions = append(positions, all[i].Positions...)
	}
	sort.Ints(positions)
	dedup := positions[:0]
	for k, v := range positions {
		if k == 0 || v != positions[k-1] {
			dedup = append(dedup, v)
		}
	}

	m := stitch.RawStrike{Positions: dedup, First: all[members[0]].First, Last: all[members[0]].Last}
	for _, i := range members[1:] {
		if all[i].First < m.First {
			m.First = all[i].First
		}
		if all[i].Last > m.Last {
			m.Last = all[i].Last
		}
	}
	return m
}

func sortByStart(strikes []stitch.RawStrike) {
	sort.Slice(strikes, func(i, j int) bool {
		if strikes[i].First != strikes[j].First {
			return strikes[i].First < strikes[j].First
		}
		return strikes[i].Positions[0] < strikes[j].Positions[0]
	})
}

// strikeSet is a minimal union-find over strike list indices.
type strikeSet struct {
	parent []int
}

func newStrikeSet(n int) *strikeSet {
	s := &strikeSet{parent: make([]int, n)}
	for i := range s.parent {
		s.parent[i] = i
	}
	return s
}

func (s *strikeSet) find(x int) int {
	root := x
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[x] != root {
		s.parent[x], x = root, s.parent[x]
	}
	return root
}

func (s *strikeSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	s.parent[rb] = ra
}
