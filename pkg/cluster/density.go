package cluster

// Density clusters observations by a density criterion over a precomputed
// distance matrix: a point with at least minPts neighbours within eps is a
// core point, cores within eps of each other share a cluster, and border
// points join the cluster of any core in range. Noise points are not
// discarded; they are reassigned to the cluster with the lowest mean
// distance, matching the lossless behaviour of the agglomerative path.
func Density(dist [][]float64, eps float64, minPts int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels
	}

	neighbours := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j != i && dist[i][j] <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	next := 0
	visited := make([]bool, n)
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		seed := neighbours(i)
		if len(seed) < minPts {
			continue // noise for now
		}

		labels[i] = next
		for qi := 0; qi < len(seed); qi++ {
			q := seed[qi]
			if labels[q] == -1 {
				labels[q] = next
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			qn := neighbours(q)
			if len(qn) >= minPts {
				seed = append(seed, qn...)
			}
		}
		next++
	}

	if next == 0 {
		// Everything is noise: one cluster.
		for i := range labels {
			labels[i] = 0
		}
		return labels
	}

	// Reassign remaining noise to the nearest cluster by mean distance.
	for i := 0; i < n; i++ {
		if labels[i] != -1 {
			continue
		}
		bestLabel := 0
		bestMean := -1.0
		for label := 0; label < next; label++ {
			var sum float64
			var count int
			for j := 0; j < n; j++ {
				if labels[j] == label {
					sum += dist[i][j]
					count++
				}
			}
			if count == 0 {
				continue
			}
			mean := sum / float64(count)
			if bestMean < 0 || mean < bestMean {
				bestMean = mean
				bestLabel = label
			}
		}
		labels[i] = bestLabel
	}
	return labels
}

// Sizes returns the member count per label.
func Sizes(labels []int) map[int]int {
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	return sizes
}
