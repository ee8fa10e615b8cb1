// Package stitch implements the strike clustering core: the incremental
// spatio-temporal stitcher, the candidate-neighbor index it leans on, and
// the combiner that merges strikes with intercepting time windows.
package stitch

import (
	"context"
	"sort"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// RawStrike is a strike under construction or awaiting finalization:
// point-set positions in time-ascending order plus the time extent. It
// becomes a domain.Strike through PointSet.FinalizeStrike.
type RawStrike struct {
	Positions []int
	First     float64
	Last      float64
}

// dtSqFloor clamps squared time deltas before the speed division so
// near-simultaneous points don't blow up to infinite speed. Matches the
// 40 ns-scale timing resolution of the network solutions.
const dtSqFloor = 1e-5

// cancelCheckInterval is how many points a Stitch call processes between
// context checks.
const cancelCheckInterval = 4096

// openStrike is a strike still accepting members.
type openStrike struct {
	id        int
	positions []int
	first     float64
	last      float64
}

// Stitch clusters positions [start, end) of ps into strikes with a single
// time-ordered pass. For each point it collects the open strikes holding a
// member within MaxLightningTimeThreshold seconds and MaxLightningDist
// meters (both inclusive, distances compared squared) whose implied speed
// to the temporally nearest such member lies in [MinLightningSpeed,
// MaxLightningSpeed]. One qualifying strike appends the point; several are
// first merged (smallest strike identifier survives); none opens a new
// strike. A strike closes once it has been inactive longer than the time
// threshold or its duration has exceeded MaxLightningDuration, and is kept
// only if it reached MinLightningPoints members.
//
// For a fixed point ordering the result is fully deterministic: candidate
// strikes are visited in ascending identifier order and no step iterates an
// unordered collection.
func Stitch(ctx context.Context, ps *domain.PointSet, params domain.Parameters, start, end int) ([]RawStrike, error) {
	if start >= end {
		return nil, nil
	}
	var (
		maxDistSq  = params.MaxLightningDist * params.MaxLightningDist
		minSpeedSq = params.MinLightningSpeed * params.MinLightningSpeed
		maxSpeedSq = params.MaxLightningSpeed * params.MaxLightningSpeed
		threshold  = params.MaxLightningTimeThreshold
		maxDur     = params.MaxLightningDuration
		minPts     = params.MinLightningPoints
	)

	ds := newDisjointSet()
	grid := newTimeGrid(params.MaxLightningDist, threshold)
	open := make(map[int]*openStrike)
	openOrder := []int{} // ascending strike ids, compacted as strikes close

	var out []RawStrike

	closeExpired := func(now float64) {
		kept := openOrder[:0]
		for _, id := range openOrder {
			s := open[id]
			if now-s.last > threshold || now-s.first > maxDur {
				if len(s.positions) >= minPts {
					out = append(out, RawStrike{Positions: s.positions, First: s.first, Last: s.last})
				}
				delete(open, id)
				continue
			}
			kept = append(kept, id)
		}
		openOrder = kept
	}

	// Per-point candidate scratch, reused across iterations.
	type candidate struct {
		bestDt     float64 // time delta to the temporally nearest in-range member
		bestDistSq float64
	}
	cand := make(map[int]*candidate)
	candIDs := []int{}

	for pos := start; pos < end; pos++ {
		if (pos-start)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		t := ps.Times[pos]
		grid.advance(t)
		closeExpired(t)

		clear(cand)
		candIDs = candIDs[:0]

		x, y, z := ps.X[pos], ps.Y[pos], ps.Z[pos]
		grid.visitCandidates(t, x, y, z, func(e gridEntry) {
			dt := t - ps.Times[e.pos]
			if dt > threshold {
				return
			}
			distSq := ps.DistSq(pos, e.pos)
			if distSq > maxDistSq {
				return
			}
			root := ds.find(e.strike)
			s, stillOpen := open[root]
			if !stillOpen || t-s.first > maxDur {
				return
			}
			c, ok := cand[root]
			if !ok {
				cand[root] = &candidate{bestDt: dt, bestDistSq: distSq}
				candIDs = append(candIDs, root)
				return
			}
			// Temporally nearest member wins; on an exact time tie keep
			// the spatially nearer one.
			if dt < c.bestDt || (dt == c.bestDt && distSq < c.bestDistSq) {
				c.bestDt = dt
				c.bestDistSq = distSq
			}
		})

		// Keep only strikes whose speed to the nearest member is in range.
		sort.Ints(candIDs)
		qualified := candIDs[:0]
		for _, id := range candIDs {
			c := cand[id]
			dtSq := c.bestDt * c.bestDt
			if dtSq < dtSqFloor {
				dtSq = dtSqFloor
			}
			speedSq := c.bestDistSq / dtSq
			if speedSq >= minSpeedSq && speedSq <= maxSpeedSq {
				qualified = append(qualified, id)
			}
		}

		var target *openStrike
		switch len(qualified) {
		case 0:
			id := ds.add()
			target = &openStrike{id: id, positions: make([]int, 0, 8), first: t, last: t}
			open[id] = target
			openOrder = append(openOrder, id)
		case 1:
			target = open[qualified[0]]
		default:
			// qualified is ascending and union keeps the smaller root, so
			// the first identifier survives every merge.
			root := qualified[0]
			a := open[root]
			for _, id := range qualified[1:] {
				ds.union(root, id)
				b := open[id]
				a.positions = append(a.positions, b.positions...)
				if b.first < a.first {
					a.first = b.first
				}
				if b.last > a.last {
					a.last = b.last
				}
				delete(open, id)
			}
			openOrder = removeClosed(openOrder, open)
			target = a
		}

		target.positions = append(target.positions, pos)
		target.last = t
		grid.insert(pos, target.id, t, x, y, z)
	}

	closeExpired(ps.Times[end-1] + threshold + maxDur + 1)

	for _, s := range out {
		sort.Ints(s.Positions)
	}
	sortRawStrikes(out)
	return out, nil
}

// removeClosed drops identifiers no longer present in the open set while
// preserving ascending order.
func removeClosed(order []int, open map[int]*openStrike) []int {
	kept := order[:0]
	for _, id := range order {
		if _, ok := open[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// sortRawStrikes orders strikes by start time, then first position, so a
// strike list has one canonical order regardless of closure order.
func sortRawStrikes(strikes []RawStrike) {
	sort.Slice(strikes, func(i, j int) bool {
		if strikes[i].First != strikes[j].First {
			return strikes[i].First < strikes[j].First
		}
		return strikes[i].Positions[0] < strikes[j].Positions[0]
	})
}
