package candidate

import (
	"context"
	"fmt"
	"sort"

	"github.com/OFFIS-RIT/taxo/pkg/cluster"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/profile"
	"github.com/OFFIS-RIT/taxo/pkg/store"
)

// MergeBuilder finds merge partners for a screened type among the active
// types of the same kind. A pair survives when its TF-IDF structural
// signatures are close, its definitions point the same way, and the combined
// instance set cannot be told apart along the type boundary.
type MergeBuilder struct {
	cfg *lifecycle.Config
}

func NewMergeBuilder(cfg *lifecycle.Config) *MergeBuilder {
	return &MergeBuilder{cfg: cfg}
}

// Build returns the merge pairs for t, best structural match first. Partner
// candidates come from the snapshot's active types of the same kind; t itself
// and types below NMin instances are excluded. An empty slice means no pair
// survived the gates.
func (b *MergeBuilder) Build(ctx context.Context, snap store.Snapshot, t *ontology.Type) ([]MergeEvidence, error) {
	active, err := snap.ActiveTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge evidence for %s: %w", t.ID, err)
	}

	subject, err := b.loadSide(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	if len(subject.instances) < b.cfg.NMin {
		return nil, fmt.Errorf("merge evidence for %s (%d instances): %w", t.ID, len(subject.instances), lifecycle.ErrEvidenceInsufficient)
	}

	sides := map[string]*mergeSide{t.ID: subject}
	signatures := map[string]profile.Signature{t.ID: subject.signature}
	for i := range active {
		p := &active[i]
		if p.ID == t.ID || p.Kind != t.Kind {
			continue
		}
		side, err := b.loadSide(ctx, snap, p)
		if err != nil {
			return nil, err
		}
		if len(side.instances) < b.cfg.NMin {
			continue
		}
		sides[p.ID] = side
		signatures[p.ID] = side.signature
	}
	if len(sides) < 2 {
		return nil, nil
	}

	// TF-IDF is computed over the whole candidate pool so that axes shared
	// by every type stop dominating the similarity.
	vectors := profile.TFIDF(signatures)

	var out []MergeEvidence
	for id, side := range sides {
		if id == t.ID {
			continue
		}
		structural := profile.Cosine(vectors[t.ID], vectors[id])
		if structural < b.cfg.ThetaMerge {
			continue
		}
		conceptual := profile.CosineF32(t.DefEmbedding, side.typ.DefEmbedding)
		if conceptual < b.cfg.ConceptualMin {
			continue
		}
		sep, err := b.separability(subject, side)
		if err != nil {
			return nil, err
		}
		if sep >= b.cfg.ThetaSplit {
			// The two groups pull apart cleanly when forced into one
			// partition, so the boundary between the types is real.
			continue
		}
		out = append(out, MergeEvidence{
			A:                *t,
			B:                *side.typ,
			StructuralSim:    structural,
			ConceptualSim:    conceptual,
			Separability:     sep,
			SharedAxes:       profile.SharedAxes(subject.signature, side.signature),
			DistinctA:        profile.DistinctAxes(subject.signature, side.signature),
			DistinctB:        profile.DistinctAxes(side.signature, subject.signature),
			InstanceCountA:   len(subject.instances),
			InstanceCountB:   len(side.instances),
			RepresentativesA: representatives(subject.instances),
			RepresentativesB: representatives(side.instances),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StructuralSim != out[j].StructuralSim {
			return out[i].StructuralSim > out[j].StructuralSim
		}
		return out[i].B.ID < out[j].B.ID
	})
	return out, nil
}

type mergeSide struct {
	typ       *ontology.Type
	instances []ontology.Instance
	signature profile.Signature
}

func (b *MergeBuilder) loadSide(ctx context.Context, snap store.Snapshot, t *ontology.Type) (*mergeSide, error) {
	instances, err := snap.Instances(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("merge evidence for %s: %w", t.ID, err)
	}
	if len(instances) > b.cfg.SampleCap {
		instances = instances[:b.cfg.SampleCap]
	}
	return &mergeSide{
		typ:       t,
		instances: instances,
		signature: profile.AggregateSignature(instances),
	}, nil
}

// separability runs the fixed two-group test: pool both instance sets, label
// each row by its source type, and score that partition. No re-clustering;
// the question is whether the existing boundary is visible at all.
func (b *MergeBuilder) separability(a, o *mergeSide) (float64, error) {
	combined := make([]ontology.Instance, 0, len(a.instances)+len(o.instances))
	combined = append(combined, a.instances...)
	combined = append(combined, o.instances...)

	m := profile.Build(combined)
	dist, err := cluster.Distances(m, cluster.Metric(b.cfg.DistanceMetric))
	if err != nil {
		return 0, err
	}

	fromA := make(map[string]bool, len(a.instances))
	for _, in := range a.instances {
		fromA[in.ID] = true
	}
	labels := make([]int, len(m.InstanceIDs))
	for i, id := range m.InstanceIDs {
		if fromA[id] {
			labels[i] = 0
		} else {
			labels[i] = 1
		}
	}
	return cluster.FixedPartitionSilhouette(dist, labels), nil
}

func representatives(instances []ontology.Instance) []string {
	ids := make([]string, len(instances))
	for i, in := range instances {
		ids[i] = in.ID
	}
	sort.Strings(ids)
	if len(ids) > representativeCount {
		ids = ids[:representativeCount]
	}
	return ids
}
