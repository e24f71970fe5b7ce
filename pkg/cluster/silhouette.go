package cluster

// Silhouette computes the mean silhouette coefficient of a labelled partition
// over a precomputed distance matrix. Observations in singleton clusters
// score 0. Returns 0 for partitions with fewer than 2 clusters.
func Silhouette(dist [][]float64, labels []int) float64 {
	n := len(labels)
	if n == 0 {
		return 0
	}

	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}

		// a(i): mean distance to own cluster; b(i): lowest mean distance to
		// any other cluster.
		sums := make(map[int]float64)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[labels[j]] += dist[i][j]
		}

		a := sums[own] / float64(sizes[own]-1)
		b := -1.0
		for label, sum := range sums {
			if label == own {
				continue
			}
			mean := sum / float64(sizes[label])
			if b < 0 || mean < b {
				b = mean
			}
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
	}
	return total / float64(n)
}

// BestCut evaluates the silhouette at every dendrogram cut from k=2 up to
// maxK and returns the labels, cluster count and score of the best one.
// Returns k=1 and score 0 when no multi-cluster cut exists.
func BestCut(dist [][]float64, dendro *Dendrogram, maxK int) ([]int, int, float64) {
	n := len(dist)
	if maxK > n {
		maxK = n
	}

	bestK := 1
	bestScore := 0.0
	var bestLabels []int
	for k := 2; k <= maxK; k++ {
		labels := dendro.Cut(k)
		score := Silhouette(dist, labels)
		if bestLabels == nil || score > bestScore {
			bestScore = score
			bestK = k
			bestLabels = labels
		}
	}
	if bestLabels == nil {
		bestLabels = make([]int, n)
		bestK = 1
		bestScore = 0
	}
	return bestLabels, bestK, bestScore
}

// FixedPartitionSilhouette scores a partition whose grouping is given rather
// than searched: the separability test for merge candidates.
func FixedPartitionSilhouette(dist [][]float64, labels []int) float64 {
	return Silhouette(dist, labels)
}
