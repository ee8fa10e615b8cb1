package stitch

// disjointSet is a union-find arena over strike identifiers with path
// compression. Union always keeps the smaller identifier as the root, so
// the representative of a merged class is deterministic regardless of the
// order pairs were evaluated in.
type disjointSet struct {
	parent []int
}

func newDisjointSet() *disjointSet {
	return &disjointSet{}
}

// add allocates a new singleton class and returns its identifier.
func (d *disjointSet) add() int {
	id := len(d.parent)
	d.parent = append(d.parent, id)
	return id
}

// find returns the representative of x's class.
func (d *disjointSet) find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		d.parent[x], x = root, d.parent[x]
	}
	return root
}

// union merges the classes of a and b and returns the surviving root,
// which is always the smaller of the two class representatives.
func (d *disjointSet) union(a, b int) int {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return ra
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	return ra
}
