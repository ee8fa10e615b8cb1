package stitch

import "math"

// timeGrid is the spatio-temporal index behind candidate neighbor lookup.
// Members of open strikes are bucketed by a time slice of width
// MaxLightningTimeThreshold and, within a slice, by a spatial grid cell of
// side MaxLightningDist. Because points arrive in time order, any member
// within the time threshold of the current point lives in the current or
// previous slice, and any member within the distance threshold lives in the
// same or an adjacent cell; a lookup therefore touches at most 2·27 cells
// instead of every prior point, bounding comparison work to the local
// neighbor density. Slices older than the previous one can never qualify
// again and are dropped wholesale.
type timeGrid struct {
	cellSize    float64
	bucketWidth float64

	cells   map[gridKey][]gridEntry
	buckets map[int64][]gridKey // keys allocated per time slice, for eviction
	minLive int64
}

type gridKey struct {
	tb         int64
	cx, cy, cz int32
}

// gridEntry records one strike member. strike holds the identifier at
// insertion time; callers resolve it through the disjoint set at lookup.
type gridEntry struct {
	pos    int
	strike int
}

func newTimeGrid(cellSize, bucketWidth float64) *timeGrid {
	return &timeGrid{
		cellSize:    cellSize,
		bucketWidth: bucketWidth,
		cells:       make(map[gridKey][]gridEntry),
		buckets:     make(map[int64][]gridKey),
		minLive:     math.MinInt64,
	}
}

func (g *timeGrid) key(t, x, y, z float64) gridKey {
	return gridKey{
		tb: int64(math.Floor(t / g.bucketWidth)),
		cx: int32(math.Floor(x / g.cellSize)),
		cy: int32(math.Floor(y / g.cellSize)),
		cz: int32(math.Floor(z / g.cellSize)),
	}
}

// insert records a strike member at its spatio-temporal cell.
func (g *timeGrid) insert(pos, strike int, t, x, y, z float64) {
	k := g.key(t, x, y, z)
	if _, exists := g.cells[k]; !exists {
		g.buckets[k.tb] = append(g.buckets[k.tb], k)
	}
	g.cells[k] = append(g.cells[k], gridEntry{pos: pos, strike: strike})
}

// visitCandidates calls fn for every entry in the current and previous time
// slice within one cell of the query position, in a fixed traversal order
// so downstream processing stays deterministic.
func (g *timeGrid) visitCandidates(t, x, y, z float64, fn func(gridEntry)) {
	center := g.key(t, x, y, z)
	for tb := center.tb - 1; tb <= center.tb; tb++ {
		for cz := center.cz - 1; cz <= center.cz+1; cz++ {
			for cy := center.cy - 1; cy <= center.cy+1; cy++ {
				for cx := center.cx - 1; cx <= center.cx+1; cx++ {
					for _, e := range g.cells[gridKey{tb: tb, cx: cx, cy: cy, cz: cz}] {
						fn(e)
					}
				}
			}
		}
	}
}

// advance evicts time slices that can no longer hold qualifying members
// for any point at or after time t.
func (g *timeGrid) advance(t float64) {
	live := int64(math.Floor(t/g.bucketWidth)) - 1
	if g.minLive == math.MinInt64 {
		g.minLive = live
		return
	}
	for tb := g.minLive; tb < live; tb++ {
		for _, k := range g.buckets[tb] {
			delete(g.cells, k)
		}
		delete(g.buckets, tb)
	}
	if live > g.minLive {
		g.minLive = live
	}
}
