package stitch

import (
	"sort"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// Combine merges strikes whose buffered time windows intersect and whose
// footprints touch. Two strikes merge when their intervals, each extended
// by InterceptingTimesExtensionBuffer on both ends, overlap and the start
// point of one lies within InterceptingTimesExtensionMaxDistance of any
// point of the other (either direction suffices). Merging runs through the
// same union-find discipline as the stitcher, so the transitive closure is
// independent of pair evaluation order, and passes repeat until no pair
// merges, so running Combine on its own output is a no-op.
//
// When CombineStrikesWithInterceptingTimes is off the input is returned
// unmodified. The pass is O(m²) in strikes, not points; by this stage the
// stitcher has already reduced millions of points to a handful of strikes.
func Combine(ps *domain.PointSet, strikes []RawStrike, params domain.Parameters) []RawStrike {
	if !params.CombineStrikesWithInterceptingTimes || len(strikes) < 2 {
		return strikes
	}

	buffer := params.InterceptingTimesExtensionBuffer
	maxDistSq := params.InterceptingTimesExtensionMaxDistance * params.InterceptingTimesExtensionMaxDistance

	current := strikes
	for {
		merged, changed := combinePass(ps, current, buffer, maxDistSq)
		if !changed {
			return merged
		}
		current = merged
	}
}

// combinePass runs one full pairwise merge sweep. It reports whether any
// merge happened so Combine can iterate to a fixed point.
func combinePass(ps *domain.PointSet, strikes []RawStrike, buffer, maxDistSq float64) ([]RawStrike, bool) {
	ds := newDisjointSet()
	for range strikes {
		ds.add()
	}

	changed := false
	for i := 0; i < len(strikes); i++ {
		for j := i + 1; j < len(strikes); j++ {
			if ds.find(i) == ds.find(j) {
				continue
			}
			if !intervalsIntersect(strikes[i], strikes[j], buffer) {
				continue
			}
			if startNearAny(ps, strikes[i], strikes[j], maxDistSq) ||
				startNearAny(ps, strikes[j], strikes[i], maxDistSq) {
				ds.union(i, j)
				changed = true
			}
		}
	}
	if !changed {
		return strikes, false
	}

	groups := make(map[int][]int)
	roots := []int{}
	for i := range strikes {
		r := ds.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	sort.Ints(roots)

	out := make([]RawStrike, 0, len(roots))
	for _, r := range roots {
		out = append(out, mergeStrikes(strikes, groups[r]))
	}
	sortRawStrikes(out)
	return out, true
}

// intervalsIntersect reports whether the two strike intervals, each
// extended by the buffer on both ends, overlap.
func intervalsIntersect(a, b RawStrike, buffer float64) bool {
	return a.First-buffer <= b.Last+buffer && b.First-buffer <= a.Last+buffer
}

// startNearAny reports whether a's start point lies within the squared
// distance bound of at least one point of b.
func startNearAny(ps *domain.PointSet, a, b RawStrike, maxDistSq float64) bool {
	startPos := a.Positions[0]
	for _, pos := range b.Positions {
		if ps.DistSq(startPos, pos) <= maxDistSq {
			return true
		}
	}
	return false
}

// mergeStrikes unions the member lists of the indexed strikes, dropping
// duplicate positions, and recomputes the time extent.
func mergeStrikes(strikes []RawStrike, members []int) RawStrike {
	total := 0
	for _, i := range members {
		total += len(strikes[i].Positions)
	}
	positions := make([]int, 0, total)
	for _, i := range members {
		positions = append(positions, strikes[i].Positions...)
	}
	sort.Ints(positions)
	positions = compactInts(positions)

	merged := RawStrike{Positions: positions, First: strikes[members[0]].First, Last: strikes[members[0]].Last}
	for _, i := range members[1:] {
		if strikes[i].First < merged.First {
			merged.First = strikes[i].First
		}
		if strikes[i].Last > merged.Last {
			merged.Last = strikes[i].Last
		}
	}
	return merged
}

// compactInts removes adjacent duplicates from a sorted slice in place.
func compactInts(s []int) []int {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
