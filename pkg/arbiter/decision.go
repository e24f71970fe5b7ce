// Package arbiter asks a language model to judge structurally backed
// candidates and translates its answers into typed decisions. Structural
// evidence decides WHETHER a question is asked; the model only ever decides
// WHICH conceptual reading fits.
package arbiter

// Kind distinguishes the two question shapes put to the arbiter.
type Kind string

const (
	KindSplit Kind = "split"
	KindMerge Kind = "merge"
)

// Classification is the arbiter's reading of a candidate.
type Classification string

const (
	// ClassSpecialisation: the sub-clusters are genuine sub-senses of the
	// parent. Children extend the parent's label trail.
	ClassSpecialisation Classification = "specialisation"
	// ClassDisambiguation: the parent conflated unrelated senses. Children
	// start fresh label trails.
	ClassDisambiguation Classification = "disambiguation"
	// ClassAbstraction: one type subsumes the other; the narrower one folds
	// into the broader one as an alias.
	ClassAbstraction Classification = "abstraction"
	// ClassDeduplication: the two types are the same concept under two
	// names; one canonical survivor is chosen.
	ClassDeduplication Classification = "deduplication"
	// ClassReject: the structural signal does not correspond to a real
	// conceptual distinction or identity.
	ClassReject Classification = "reject"
)

// ChildSpec names one child type of an accepted split.
type ChildSpec struct {
	Label      string
	Definition string
}

// Decision is the validated outcome of one arbiter consultation.
type Decision struct {
	Kind           Kind
	Classification Classification
	// Accepted is false exactly when Classification is ClassReject.
	Accepted bool

	// Children is populated for accepted splits, one entry per sub-cluster
	// in evidence order.
	Children []ChildSpec

	// CanonicalLabel and CanonicalDefinition are populated for accepted
	// merges: the surviving name and definition. CanonicalTypeID resolves the
	// label to the evidence side it names; labels are normalized during
	// validation, so downstream code must pick the survivor by ID.
	CanonicalLabel      string
	CanonicalTypeID     string
	CanonicalDefinition string
	// SubsumedTypeID is populated for abstraction: the type that folds into
	// the other.
	SubsumedTypeID string

	// Reasoning is the model's own account, kept for the audit trail.
	Reasoning string
}
