package cluster

// merge records one agglomeration step: clusters a and b (node indices in
// dendrogram numbering) joined at the given average-linkage distance.
type merge struct {
	a, b     int
	distance float64
}

// Dendrogram is the full agglomeration history of n observations. Leaves are
// nodes 0..n-1; merge step i creates node n+i.
type Dendrogram struct {
	n      int
	merges []merge
}

// Agglomerative builds a dendrogram by average-linkage agglomeration over a
// precomputed distance matrix. Deterministic: ties are broken by the lowest
// pair of cluster indices.
func Agglomerative(dist [][]float64) *Dendrogram {
	n := len(dist)
	d := &Dendrogram{n: n}
	if n < 2 {
		return d
	}

	// Active cluster set, each tracking its dendrogram node id and size.
	// work[i][j] holds the current average-linkage distance between active
	// clusters i and j.
	type cl struct {
		node int
		size int
	}
	active := make([]cl, n)
	work := make([][]float64, n)
	for i := 0; i < n; i++ {
		active[i] = cl{node: i, size: 1}
		work[i] = make([]float64, n)
		copy(work[i], dist[i])
	}
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	for step := 0; step < n-1; step++ {
		bi, bj := -1, -1
		best := 0.0
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !alive[j] {
					continue
				}
				if bi == -1 || work[i][j] < best {
					best = work[i][j]
					bi, bj = i, j
				}
			}
		}

		d.merges = append(d.merges, merge{a: active[bi].node, b: active[bj].node, distance: best})

		// Lance-Williams update for average linkage: the merged cluster's
		// distance to any other is the size-weighted mean of its parts'.
		sa := float64(active[bi].size)
		sb := float64(active[bj].size)
		for k := 0; k < n; k++ {
			if !alive[k] || k == bi || k == bj {
				continue
			}
			work[bi][k] = (sa*work[bi][k] + sb*work[bj][k]) / (sa + sb)
			work[k][bi] = work[bi][k]
		}
		active[bi] = cl{node: n + step, size: active[bi].size + active[bj].size}
		alive[bj] = false
	}

	return d
}

// Cut returns cluster labels for the partition with exactly k clusters,
// replaying merges until k clusters remain. Labels are 0-based and assigned
// in order of first appearance. k is clamped to [1, n].
func (d *Dendrogram) Cut(k int) []int {
	if d.n == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > d.n {
		k = d.n
	}

	parent := make([]int, d.n+len(d.merges))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	// Applying the first n-k merges leaves exactly k clusters.
	for step := 0; step < d.n-k; step++ {
		m := d.merges[step]
		node := d.n + step
		parent[find(m.a)] = node
		parent[find(m.b)] = node
	}

	labels := make([]int, d.n)
	next := 0
	seen := make(map[int]int)
	for i := 0; i < d.n; i++ {
		root := find(i)
		label, ok := seen[root]
		if !ok {
			label = next
			seen[root] = label
			next++
		}
		labels[i] = label
	}
	return labels
}

// MergeHeights returns the linkage distance of every merge step in order.
func (d *Dendrogram) MergeHeights() []float64 {
	heights := make([]float64, len(d.merges))
	for i, m := range d.merges {
		heights[i] = m.distance
	}
	return heights
}
