package ontology

import (
	"time"
)

// TypeKind distinguishes entity types from relation types. The type graph is
// bipartite: relation-kind instances only hold role edges to entity-kind
// counterparts, and vice versa.
type TypeKind string

const (
	KindEntity   TypeKind = "entity"
	KindRelation TypeKind = "relation"
)

// Opposite returns the counterpart kind for role edges.
func (k TypeKind) Opposite() TypeKind {
	if k == KindEntity {
		return KindRelation
	}
	return KindEntity
}

// TypeStatus is the lifecycle state of a type in the registry.
type TypeStatus string

const (
	StatusActive     TypeStatus = "active"
	StatusSuperseded TypeStatus = "superseded"
)

// Retirement records why a superseded type left the active registry.
type Retirement string

const (
	// RetirementReplaced marks a specialisation parent: a coherent ancestor
	// replaced by its children, which keep its label in their trails.
	RetirementReplaced Retirement = "replaced"
	// RetirementConflation marks a disambiguation parent: a label that never
	// denoted one population. Children start fresh trails.
	RetirementConflation Retirement = "conflation"
	// RetirementAbsorbed marks the subsumed side of an abstraction merge.
	RetirementAbsorbed Retirement = "absorbed"
	// RetirementDuplicate marks the non-canonical side of a deduplication.
	RetirementDuplicate Retirement = "duplicate"
)

// Type is a schema-level node of the ontology. It never appears in any
// instance graph itself; instances reference it by ID.
type Type struct {
	ID             string            `json:"id"`
	Kind           TypeKind          `json:"kind"`
	LabelTrail     []string          `json:"label_trail"`
	Definition     string            `json:"definition"`
	DefEmbedding   []float32         `json:"-"`
	PropertySchema map[string]string `json:"property_schema,omitempty"`
	Status         TypeStatus        `json:"status"`
	Retirement     Retirement        `json:"retirement,omitempty"`
	Aliases        []string          `json:"aliases,omitempty"`
	IsSeed         bool              `json:"is_seed"`
	CreatedAt      time.Time         `json:"created_at"`
}

/// Label returns the canonical label: the last element of the label trail.
func (t *Type) Label() string {
	if len(t.LabelTrail) == 0 {
		return ""
	}
	return t.LabelTrail[len(t.LabelTrail)-1]
}

// Active reports whether the type participates in live candidate detection.
func (t *Type) Active() bool {
	return t.Status == StatusActive
}

// DescendsFrom reports whether label appears in this type's ancestry. Ancestry
// is a trail-containment check, not a graph traversal: a specialisation child
// carries every ancestor label in order, a disambiguation child carries none.
func (t *Type) DescendsFrom(label string) bool {
	for i := 0; i < len(t.LabelTrail)-1; i++ {
		if t.LabelTrail[i] == label {
			return true
		}
	}
	return false
}

// Valid checks the structural invariants every registry-resident type must
// hold: non-empty trail, known kind, canonical label present.
func (t *Type) Valid() bool {
	if t.ID == "" || len(t.LabelTrail) == 0 || t.Label() == "" {
		return false
	}
	return t.Kind == KindEntity || t.Kind == KindRelation
}

// RoleEdge is one observed (role, counterpart) participation of an instance.
type RoleEdge struct {
	Role              string `json:"role"`
	CounterpartID     string `json:"counterpart_id"`
	CounterpartTypeID string `json:"counterpart_type_id"`
}

// Instance is a graph node or edge instantiating exactly one type.
type Instance struct {
	ID         string            `json:"id"`
	TypeID     string            `json:"type_id"`
	IdentityID string            `json:"identity_id,omitempty"` // entity-kind only; owned by entity resolution
	Properties map[string]string `json:"properties,omitempty"`
	Edges      []RoleEdge        `json:"edges"`
	CreatedAt  time.Time         `json:"created_at"`
	// Weight is the temporal-window weight assigned by the snapshot reader.
	// 1.0 under full-history and sliding-window policies.
	Weight float64 `json:"-"`
}

// Axis is one (role, counterpart-type) feature dimension of a structural
// profile.
type Axis struct {
	Role              string `json:"role"`
	CounterpartTypeID string `json:"counterpart_type_id"`
}

func (a Axis) String() string {
	return a.Role + "→" + a.CounterpartTypeID
}

// Profile returns the instance's structural profile: the multiset of
// (role, counterpart-type) pairs observed on it, as axis counts.
func (in *Instance) Profile() map[Axis]int {
	profile := make(map[Axis]int, len(in.Edges))
	for _, e := range in.Edges {
		profile[Axis{Role: e.Role, CounterpartTypeID: e.CounterpartTypeID}]++
	}
	return profile
}
