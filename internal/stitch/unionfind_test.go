package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisjointSetSmallerRootSurvives(t *testing.T) {
	ds := newDisjointSet()
	for i := 0; i < 6; i++ {
		assert.Equal(t, i, ds.add())
	}

	assert.Equal(t, 2, ds.union(4, 2))
	assert.Equal(t, 2, ds.find(4))

	// Merging through non-root members still resolves to the smallest id.
	assert.Equal(t, 1, ds.union(4, 1))
	assert.Equal(t, 1, ds.find(2))
	assert.Equal(t, 1, ds.find(4))

	// Union of an already merged pair is a no-op.
	assert.Equal(t, 1, ds.union(1, 2))

	assert.Equal(t, 5, ds.find(5))
}
