// Package cluster provides the clustering primitives the candidate builders
// run over structural-profile matrices: average-linkage agglomerative
// clustering with silhouette-scored dendrogram cuts, and a density-based
// fallback for emergent splits.
package cluster

import (
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/profile"
)

// Metric names a row distance.
type Metric string

const (
	MetricJaccard Metric = "jaccard"
	MetricCosine  Metric = "cosine"
)

// Distances computes the full pairwise distance matrix of a feature matrix.
func Distances(m *profile.Matrix, metric Metric) ([][]float64, error) {
	var fn func(a, b []float64) float64
	switch metric {
	case MetricJaccard:
		fn = profile.JaccardDistance
	case MetricCosine:
		fn = profile.CosineDistance
	default:
		return nil, fmt.Errorf("unknown distance metric: %q", metric)
	}

	n := m.N()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := fn(m.Rows[i], m.Rows[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist, nil
}
