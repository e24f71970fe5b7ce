package cascade

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/cluster"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/profile"
	"github.com/OFFIS-RIT/taxo/pkg/store"
)

// Estimated information gain of an operation: how much more homogeneous the
// affected instance populations get, minus a complexity penalty on the
// active-type-count change. Operations below the configured epsilon never
// reach the arbiter; the structural signal is real but not worth a commit.

// splitGain scores a split candidate. Positive when the sub-clusters are
// individually tighter than the parent as a whole.
func splitGain(ctx context.Context, cfg *lifecycle.Config, snap store.Snapshot, ev *candidate.SplitEvidence) (float64, error) {
	instances, err := snap.Instances(ctx, ev.Type.ID)
	if err != nil {
		return 0, fmt.Errorf("split gain for %s: %w", ev.Type.ID, err)
	}

	membership := make(map[string]int)
	for i, c := range ev.Clusters {
		for _, id := range c.Members {
			membership[id] = i
		}
	}
	sampled := make([]ontology.Instance, 0, len(membership))
	for _, in := range instances {
		if _, ok := membership[in.ID]; ok {
			sampled = append(sampled, in)
		}
	}
	if len(sampled) < 2 {
		return 0, nil
	}

	m := profile.Build(sampled)
	dist, err := cluster.Distances(m, cluster.Metric(cfg.DistanceMetric))
	if err != nil {
		return 0, fmt.Errorf("split gain for %s: %w", ev.Type.ID, err)
	}

	labels := make([]int, len(m.InstanceIDs))
	for i, id := range m.InstanceIDs {
		labels[i] = membership[id]
	}

	before := homogeneity(dist, nil)
	after := weightedHomogeneity(dist, labels, len(ev.Clusters))
	return after - before - cfg.Lambda*float64(len(ev.Clusters)-1), nil
}

// mergeGain scores a merge candidate. The type count drops by one, so the
// complexity term rewards the merge; the homogeneity term punishes pooling
// populations that do not actually mix.
func mergeGain(ctx context.Context, cfg *lifecycle.Config, snap store.Snapshot, ev *candidate.MergeEvidence) (float64, error) {
	a, err := snap.Instances(ctx, ev.A.ID)
	if err != nil {
		return 0, fmt.Errorf("merge gain for %s: %w", ev.A.ID, err)
	}
	b, err := snap.Instances(ctx, ev.B.ID)
	if err != nil {
		return 0, fmt.Errorf("merge gain for %s: %w", ev.B.ID, err)
	}
	if len(a) > cfg.SampleCap {
		a = a[:cfg.SampleCap]
	}
	if len(b) > cfg.SampleCap {
		b = b[:cfg.SampleCap]
	}

	combined := make([]ontology.Instance, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	if len(combined) < 2 {
		return 0, nil
	}

	fromA := make(map[string]bool, len(a))
	for _, in := range a {
		fromA[in.ID] = true
	}

	m := profile.Build(combined)
	dist, err := cluster.Distances(m, cluster.Metric(cfg.DistanceMetric))
	if err != nil {
		return 0, fmt.Errorf("merge gain for %s/%s: %w", ev.A.ID, ev.B.ID, err)
	}

	labels := make([]int, len(m.InstanceIDs))
	for i, id := range m.InstanceIDs {
		if !fromA[id] {
			labels[i] = 1
		}
	}

	before := weightedHomogeneity(dist, labels, 2)
	after := homogeneity(dist, nil)
	return after - before + cfg.Lambda, nil
}

// homogeneity is one minus the mean pairwise distance over the given member
// indices (all rows when members is nil).
func homogeneity(dist [][]float64, members []int) float64 {
	if members == nil {
		members = make([]int, len(dist))
		for i := range members {
			members[i] = i
		}
	}
	if len(members) < 2 {
		return 1
	}
	var sum float64
	var count int
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			sum += dist[members[x]][members[y]]
			count++
		}
	}
	return 1 - sum/float64(count)
}

// weightedHomogeneity averages per-group homogeneity weighted by group size.
func weightedHomogeneity(dist [][]float64, labels []int, k int) float64 {
	groups := make([][]int, k)
	for i, l := range labels {
		if l >= 0 && l < k {
			groups[l] = append(groups[l], i)
		}
	}
	var acc float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		acc += float64(len(g)) / float64(len(labels)) * homogeneity(dist, g)
	}
	return acc
}
