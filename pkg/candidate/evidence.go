// Package candidate builds the structural evidence packets handed to the
// arbiter: per-cluster breakdowns for splits, pairwise comparisons for
// merges. Everything here is computed against one pinned snapshot; nothing
// in this package mutates the registry.
package candidate

import "github.com/OFFIS-RIT/taxo/pkg/ontology"

// ClusterEvidence describes one sub-cluster of a split candidate.
type ClusterEvidence struct {
	// Size is the member count, Fraction its share of the parent's windowed
	// instances.
	Size     int
	Fraction float64
	// Members holds the member instance IDs, Representatives a small sample
	// of them for the arbiter prompt.
	Members         []string
	Representatives []string
	// Axes are the profile axes that set this cluster apart from the rest
	// of the parent, strongest first.
	Axes []ontology.Axis
}

// SplitEvidence is the full packet for one split candidate.
type SplitEvidence struct {
	Type       ontology.Type
	K          int
	Silhouette float64
	// Emergent is set when the partition came from the density fallback
	// rather than a dendrogram cut: the sub-populations surfaced as dense
	// regions instead of a clean hierarchical separation.
	Emergent bool
	Clusters []ClusterEvidence
}

// MergeEvidence is the full packet for one merge pair, A being the type that
// triggered the investigation.
type MergeEvidence struct {
	A, B ontology.Type
	// StructuralSim is the cosine of the TF-IDF structural signatures.
	StructuralSim float64
	// ConceptualSim is the cosine of the definition embeddings.
	ConceptualSim float64
	// Separability is the silhouette of the fixed two-group partition of the
	// combined instance set. Low separability means the groups are not
	// structurally distinguishable.
	Separability float64

	SharedAxes []ontology.Axis
	DistinctA  []ontology.Axis
	DistinctB  []ontology.Axis

	InstanceCountA, InstanceCountB     int
	RepresentativesA, RepresentativesB []string
}
