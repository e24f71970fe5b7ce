// Package store defines the graph-store boundary of the lifecycle engine.
// Readers work against a Snapshot pinned on one registry version; every
// mutation funnels through GraphStore.Commit, the sole writer, which applies
// the registry change and the instance reassignments as one unit.
package store

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

// ErrVersionConflict is returned by Commit when the registry advanced past
// the commit's parent version: another candidate committed first, which is
// how overlapping commits surface. The candidate must be re-screened
// against a fresh snapshot.
var ErrVersionConflict = fmt.Errorf("registry version conflict: %w", lifecycle.ErrCommitConflict)

// Snapshot is a point-in-time, read-only view of the graph pinned on one
// registry version. All candidate detection within an epoch round reads
// through the same snapshot; mid-epoch commits are only visible to
// snapshots taken afterwards.
type Snapshot interface {
	// Version is the registry version this snapshot is pinned on.
	Version() int64
	// ActiveTypes lists every active type.
	ActiveTypes(ctx context.Context) ([]ontology.Type, error)
	// TypeByID fetches one type, active or superseded.
	TypeByID(ctx context.Context, id string) (*ontology.Type, error)
	// Instances returns the instances of a type with the configured
	// temporal-window policy applied (selection and/or weights).
	Instances(ctx context.Context, typeID string) ([]ontology.Instance, error)
	// InstanceCount is the windowed instance count of a type.
	InstanceCount(ctx context.Context, typeID string) (int, error)
	// IdentityCounts returns, per identity, how many of the type's instances
	// reference it. Read-only: identities are owned by entity resolution.
	IdentityCounts(ctx context.Context, typeID string) (map[string]int, error)
}

// Supersession retires one type with a reason.
type Supersession struct {
	TypeID     string
	Retirement ontology.Retirement
}

// Commit is one atomic registry mutation: new and updated types, retired
// types, and the instance reassignments that follow from them. Either all of
// it lands and the registry version advances, or none of it does.
type Commit struct {
	CommitID      string
	ParentVersion int64
	Operation     ontology.Operation
	NewTypes      []ontology.Type
	UpdatedTypes  []ontology.Type
	Superseded    []Supersession
	// Reassign maps instance ID to its new type ID.
	Reassign map[string]string
	// ResidualType maps a superseded type ID to the active type that picks
	// up any of its instances not covered by Reassign. Candidate detection
	// works on windowed samples; this catches everything outside the sample.
	ResidualType map[string]string
	// SubjectIDs are the type IDs this operation concerns, for the version
	// history.
	SubjectIDs []string
}

// CommitResult reports the registry version a commit produced.
type CommitResult struct {
	Version  int64
	CommitID string
}

// GraphStore is the persistence boundary of the lifecycle engine.
type GraphStore interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Commit(ctx context.Context, commit *Commit) (*CommitResult, error)
	// AffectedTypes returns the active types holding role edges to instances
	// of any of the given types: the set whose structural signatures a
	// commit may have changed.
	AffectedTypes(ctx context.Context, typeIDs []string) ([]string, error)
	// Versions returns the most recent version-history entries, newest first.
	Versions(ctx context.Context, limit int) ([]ontology.Version, error)
	// AddDocuments advances the documents-since-last-scan counter and
	// returns the new value (epoch gating).
	AddDocuments(ctx context.Context, n int) (int64, error)
	// ResetDocumentCount zeroes the counter after a scan ran.
	ResetDocumentCount(ctx context.Context) error
}
