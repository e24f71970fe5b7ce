// Package memory implements store.GraphStore in process memory. It backs the
// engine's tests and local single-node runs; the persistent deployment path
// is store/pgx.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Store keeps the full registry and instance population in memory, guarded
// by a single RWMutex. Snapshots deep-copy the state they pin, so readers
// never observe mid-commit mutations.
type Store struct {
	mu        sync.RWMutex
	version   int64
	types     map[string]ontology.Type
	instances map[string]ontology.Instance
	history   []ontology.Version
	docCount  int64
	window    store.Window
	now       func() time.Time
}

// New creates an empty in-memory store using the given snapshot window.
func New(window store.Window) *Store {
	return &Store{
		types:     make(map[string]ontology.Type),
		instances: make(map[string]ontology.Instance),
		window:    window,
		now:       time.Now,
	}
}

// SeedTypes loads an initial type registry as version 1. Intended for
// bootstrap and tests; fails if the store already holds a registry.
func (s *Store) SeedTypes(types []ontology.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != 0 {
		return fmt.Errorf("store already seeded at version %d", s.version)
	}
	subjects := make([]string, 0, len(types))
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("invalid seed type %q", t.ID)
		}
		s.types[t.ID] = copyType(t)
		subjects = append(subjects, t.ID)
	}
	s.version = 1
	s.history = append(s.history, ontology.Version{
		Version:    1,
		Operation:  ontology.OpSeed,
		SubjectIDs: subjects,
		CreatedAt:  s.now(),
	})
	return nil
}

// AddInstances inserts instances. Each must reference an active type, and
// every role edge whose counterpart type is registered must point at the
// opposite kind: the type graph is bipartite. Counterpart IDs outside the
// registry pass through; extraction may reference types not yet seeded.
func (s *Store) AddInstances(instances []ontology.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range instances {
		t, ok := s.types[in.TypeID]
		if !ok || !t.Active() {
			return fmt.Errorf("instance %q references missing or superseded type %q", in.ID, in.TypeID)
		}
		for _, e := range in.Edges {
			ct, ok := s.types[e.CounterpartTypeID]
			if ok && ct.Kind != t.Kind.Opposite() {
				return fmt.Errorf("instance %q: %s edge to %s-kind type %q on a %s-kind instance",
					in.ID, e.Role, ct.Kind, ct.ID, t.Kind)
			}
		}
		s.instances[in.ID] = copyInstance(in)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshot{
		version: s.version,
		types:   make(map[string]ontology.Type, len(s.types)),
		byType:  make(map[string][]ontology.Instance),
		window:  s.window,
		now:     s.now(),
	}
	for id, t := range s.types {
		snap.types[id] = copyType(t)
	}
	for _, in := range s.instances {
		snap.byType[in.TypeID] = append(snap.byType[in.TypeID], copyInstance(in))
	}
	for id := range snap.byType {
		list := snap.byType[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		snap.byType[id] = list
	}
	return snap, nil
}

func (s *Store) Commit(ctx context.Context, c *store.Commit) (*store.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentVersion != s.version {
		return nil, fmt.Errorf("commit built against version %d, registry at %d: %w",
			c.ParentVersion, s.version, store.ErrVersionConflict)
	}

	// Stage the full post-commit state first; swap only if every check
	// passes, so a failed commit leaves the registry untouched.
	staged := make(map[string]ontology.Type, len(s.types))
	for id, t := range s.types {
		staged[id] = t
	}
	for _, t := range c.NewTypes {
		if !t.Valid() {
			return nil, fmt.Errorf("commit %s: invalid new type %q", c.CommitID, t.ID)
		}
		if _, exists := staged[t.ID]; exists {
			return nil, fmt.Errorf("commit %s: type %q already exists", c.CommitID, t.ID)
		}
		staged[t.ID] = copyType(t)
	}
	for _, t := range c.UpdatedTypes {
		if _, exists := staged[t.ID]; !exists {
			return nil, fmt.Errorf("commit %s: updated type %q not found", c.CommitID, t.ID)
		}
		staged[t.ID] = copyType(t)
	}
	for _, sup := range c.Superseded {
		t, exists := staged[sup.TypeID]
		if !exists {
			return nil, fmt.Errorf("commit %s: superseded type %q not found", c.CommitID, sup.TypeID)
		}
		t.Status = ontology.StatusSuperseded
		t.Retirement = sup.Retirement
		staged[sup.TypeID] = t
	}

	stagedInstances := make(map[string]string, len(c.Reassign))
	for instanceID, typeID := range c.Reassign {
		if _, exists := s.instances[instanceID]; !exists {
			return nil, fmt.Errorf("commit %s: reassigned instance %q not found", c.CommitID, instanceID)
		}
		target, exists := staged[typeID]
		if !exists || !target.Active() {
			return nil, fmt.Errorf("commit %s: reassignment target %q not active", c.CommitID, typeID)
		}
		stagedInstances[instanceID] = typeID
	}

	for from, to := range c.ResidualType {
		target, exists := staged[to]
		if !exists || !target.Active() {
			return nil, fmt.Errorf("commit %s: residual target %q not active", c.CommitID, to)
		}
		if t, exists := staged[from]; !exists || t.Active() {
			return nil, fmt.Errorf("commit %s: residual source %q must be superseded by this commit", c.CommitID, from)
		}
	}

	// No instance may be left on a superseded type once the commit lands.
	for id, in := range s.instances {
		typeID := in.TypeID
		if reassigned, ok := stagedInstances[id]; ok {
			typeID = reassigned
		} else if target, ok := c.ResidualType[in.TypeID]; ok {
			stagedInstances[id] = target
			typeID = target
		}
		if t, exists := staged[typeID]; !exists || !t.Active() {
			return nil, fmt.Errorf("%w: commit %s would leave instance %q on inactive type %q",
				lifecycle.ErrInvariantViolation, c.CommitID, id, typeID)
		}
	}

	commitID := c.CommitID
	if commitID == "" {
		commitID = gonanoid.Must()
	}

	s.types = staged
	for instanceID, typeID := range stagedInstances {
		in := s.instances[instanceID]
		in.TypeID = typeID
		s.instances[instanceID] = in
	}
	s.version++
	s.history = append(s.history, ontology.Version{
		Version:       s.version,
		ParentVersion: c.ParentVersion,
		CommitID:      commitID,
		Operation:     c.Operation,
		SubjectIDs:    append([]string(nil), c.SubjectIDs...),
		CreatedAt:     s.now(),
	})

	return &store.CommitResult{Version: s.version, CommitID: commitID}, nil
}

func (s *Store) AffectedTypes(ctx context.Context, typeIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mutated := make(map[string]bool, len(typeIDs))
	for _, id := range typeIDs {
		mutated[id] = true
	}

	affected := make(map[string]bool)
	for _, in := range s.instances {
		if mutated[in.TypeID] {
			continue
		}
		for _, e := range in.Edges {
			if mutated[e.CounterpartTypeID] {
				affected[in.TypeID] = true
				break
			}
		}
	}

	var out []string
	for id := range affected {
		if t, ok := s.types[id]; ok && t.Active() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Versions(ctx context.Context, limit int) ([]ontology.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ontology.Version, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *Store) AddDocuments(ctx context.Context, n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docCount += int64(n)
	return s.docCount, nil
}

func (s *Store) ResetDocumentCount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docCount = 0
	return nil
}

// InstanceTypeID reports the current type of an instance. Test helper.
func (s *Store) InstanceTypeID(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.instances[id]
	if !ok {
		return "", false
	}
	return in.TypeID, true
}

// TypeByID returns the current state of a type. Test helper.
func (s *Store) TypeByID(id string) (*ontology.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[id]
	if !ok {
		return nil, false
	}
	copied := copyType(t)
	return &copied, true
}

type snapshot struct {
	version int64
	types   map[string]ontology.Type
	byType  map[string][]ontology.Instance
	window  store.Window
	now     time.Time
}

func (sn *snapshot) Version() int64 { return sn.version }

func (sn *snapshot) ActiveTypes(ctx context.Context) ([]ontology.Type, error) {
	var out []ontology.Type
	for _, t := range sn.types {
		if t.Active() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (sn *snapshot) TypeByID(ctx context.Context, id string) (*ontology.Type, error) {
	t, ok := sn.types[id]
	if !ok {
		return nil, fmt.Errorf("type %q not found at version %d", id, sn.version)
	}
	copied := copyType(t)
	return &copied, nil
}

func (sn *snapshot) Instances(ctx context.Context, typeID string) ([]ontology.Instance, error) {
	return sn.window.Apply(sn.byType[typeID], sn.now), nil
}

func (sn *snapshot) InstanceCount(ctx context.Context, typeID string) (int, error) {
	windowed := sn.window.Apply(sn.byType[typeID], sn.now)
	return len(windowed), nil
}

func (sn *snapshot) IdentityCounts(ctx context.Context, typeID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, in := range sn.byType[typeID] {
		if in.IdentityID != "" {
			counts[in.IdentityID]++
		}
	}
	return counts, nil
}

func copyType(t ontology.Type) ontology.Type {
	out := t
	out.LabelTrail = append([]string(nil), t.LabelTrail...)
	out.Aliases = append([]string(nil), t.Aliases...)
	out.DefEmbedding = append([]float32(nil), t.DefEmbedding...)
	if t.PropertySchema != nil {
		out.PropertySchema = make(map[string]string, len(t.PropertySchema))
		for k, v := range t.PropertySchema {
			out.PropertySchema[k] = v
		}
	}
	return out
}

func copyInstance(in ontology.Instance) ontology.Instance {
	out := in
	out.Edges = append([]ontology.RoleEdge(nil), in.Edges...)
	if in.Properties != nil {
		out.Properties = make(map[string]string, len(in.Properties))
		for k, v := range in.Properties {
			out.Properties[k] = v
		}
	}
	return out
}
