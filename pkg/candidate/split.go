package candidate

import (
	"context"
	"fmt"
	"sort"

	"github.com/OFFIS-RIT/taxo/internal/util"
	"github.com/OFFIS-RIT/taxo/pkg/cluster"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/profile"
	"github.com/OFFIS-RIT/taxo/pkg/store"
)

const (
	representativeCount = 5
	distinguishingLimit = 8
)

// SplitBuilder turns a screened type into split evidence, or into nothing
// when no partition survives the quality gates.
type SplitBuilder struct {
	cfg *lifecycle.Config
}

func NewSplitBuilder(cfg *lifecycle.Config) *SplitBuilder {
	return &SplitBuilder{cfg: cfg}
}

// Build clusters the type's windowed instances and returns evidence for the
// best surviving partition. A nil, nil return means no candidate: every cut
// either scored below the silhouette threshold or produced a trivial slice.
// Types below NMin instances return ErrEvidenceInsufficient.
func (b *SplitBuilder) Build(ctx context.Context, snap store.Snapshot, t *ontology.Type) (*SplitEvidence, error) {
	instances, err := snap.Instances(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("split evidence for %s: %w", t.ID, err)
	}
	if len(instances) < b.cfg.NMin {
		return nil, fmt.Errorf("split evidence for %s (%d instances): %w", t.ID, len(instances), lifecycle.ErrEvidenceInsufficient)
	}
	if len(instances) > b.cfg.SampleCap {
		instances = instances[:b.cfg.SampleCap]
	}

	m := profile.Build(instances)
	dist, err := cluster.Distances(m, cluster.Metric(b.cfg.DistanceMetric))
	if err != nil {
		return nil, fmt.Errorf("split evidence for %s: %w", t.ID, err)
	}

	dendro := cluster.Agglomerative(dist)
	labels, k, score := cluster.BestCut(dist, dendro, b.cfg.MaxClusterK)

	emergent := false
	if score < b.cfg.ThetaSplit {
		// Hierarchical cuts found nothing. Dense sub-populations can still
		// hide below every cut line, so fall back to density clustering.
		labels, k, score = b.densityFallback(dist)
		emergent = true
	}
	if score < b.cfg.ThetaSplit || k < 2 {
		return nil, nil
	}

	clusters := b.clusterEvidence(m, labels, k)
	if clusters == nil {
		// A trivial slice below PhiMin means the partition carves off noise,
		// not a sub-population.
		return nil, nil
	}

	return &SplitEvidence{
		Type:       *t,
		K:          k,
		Silhouette: score,
		Emergent:   emergent,
		Clusters:   clusters,
	}, nil
}

func (b *SplitBuilder) densityFallback(dist [][]float64) ([]int, int, float64) {
	eps := distanceQuantile(dist, 0.25)
	if eps <= 0 {
		return nil, 0, 0
	}
	minPts := util.Max(2, b.cfg.NMin/4)
	labels := cluster.Density(dist, eps, minPts)
	k := len(cluster.Sizes(labels))
	if k < 2 {
		return labels, k, 0
	}
	return labels, k, cluster.FixedPartitionSilhouette(dist, labels)
}

func (b *SplitBuilder) clusterEvidence(m *profile.Matrix, labels []int, k int) []ClusterEvidence {
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}

	n := float64(len(labels))
	out := make([]ClusterEvidence, 0, k)
	labelOrder := make([]int, 0, len(members))
	for l := range members {
		labelOrder = append(labelOrder, l)
	}
	sort.Ints(labelOrder)

	for _, l := range labelOrder {
		idx := members[l]
		frac := float64(len(idx)) / n
		if frac < b.cfg.PhiMin {
			return nil
		}
		ids := make([]string, len(idx))
		for i, j := range idx {
			ids[i] = m.InstanceIDs[j]
		}
		sort.Strings(ids)
		reps := ids
		if len(reps) > representativeCount {
			reps = reps[:representativeCount]
		}
		out = append(out, ClusterEvidence{
			Size:            len(idx),
			Fraction:        frac,
			Members:         ids,
			Representatives: reps,
			Axes:            m.DistinguishingAxes(idx, distinguishingLimit),
		})
	}
	return out
}

// distanceQuantile returns the q-quantile of the upper-triangle distances.
func distanceQuantile(dist [][]float64, q float64) float64 {
	var vals []float64
	for i := range dist {
		for j := i + 1; j < len(dist); j++ {
			vals = append(vals, dist[i][j])
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	pos := int(q * float64(len(vals)-1))
	return vals[pos]
}
