package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(g *timeGrid, t, x, y, z float64) []int {
	var got []int
	g.visitCandidates(t, x, y, z, func(e gridEntry) {
		got = append(got, e.pos)
	})
	return got
}

func TestTimeGridFindsNeighborsAcrossAdjacentCells(t *testing.T) {
	g := newTimeGrid(1000, 1)

	g.insert(0, 0, 0.0, 0, 0, 0)
	g.insert(1, 0, 0.2, 1500, 0, 0)  // adjacent cell in x
	g.insert(2, 0, 0.4, 0, -999, 0)  // adjacent cell in y
	g.insert(3, 0, 0.5, 2500, 0, 0)  // two cells away, not adjacent
	g.insert(4, 0, 0.9, 0, 0, 500)

	got := collect(g, 0.95, 100, 100, 100)
	assert.ElementsMatch(t, []int{0, 1, 2, 4}, got)
}

func TestTimeGridSeesPreviousTimeSlice(t *testing.T) {
	g := newTimeGrid(1000, 1)

	g.insert(0, 0, 0.9, 0, 0, 0) // bucket 0
	got := collect(g, 1.1, 0, 0, 0) // bucket 1 queries buckets 0 and 1
	assert.Equal(t, []int{0}, got)

	// Two slices back is out of reach.
	got = collect(g, 2.5, 0, 0, 0)
	assert.Empty(t, got)
}

func TestTimeGridAdvanceEvictsStaleSlices(t *testing.T) {
	g := newTimeGrid(1000, 1)

	g.advance(0.1)
	g.insert(0, 0, 0.1, 0, 0, 0)
	g.advance(5.0)

	assert.Empty(t, collect(g, 5.0, 0, 0, 0))
	assert.Empty(t, g.cells)
	assert.Empty(t, g.buckets)
}

func TestTimeGridVisitOrderIsDeterministic(t *testing.T) {
	build := func() *timeGrid {
		g := newTimeGrid(1000, 1)
		g.insert(3, 0, 0.1, 900, 0, 0)
		g.insert(1, 0, 0.2, -900, 0, 0)
		g.insert(2, 0, 0.3, 0, 900, 0)
		g.insert(0, 0, 0.4, 0, 0, 0)
		return g
	}

	first := collect(build(), 0.5, 0, 0, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, collect(build(), 0.5, 0, 0, 0))
	}
}
