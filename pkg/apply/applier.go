// Package apply turns accepted arbiter decisions into atomic registry
// commits. All label-trail bookkeeping lives here: specialisation extends
// the parent's trail, disambiguation starts fresh trails, merges fold the
// losing label into the survivor's aliases.
package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/taxo/internal/util"
	"github.com/OFFIS-RIT/taxo/pkg/ai"
	"github.com/OFFIS-RIT/taxo/pkg/arbiter"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// embedTries bounds the retry budget for definition embeddings.
const embedTries = 3

// Applier builds and submits commits for accepted decisions. It holds the
// AI client only to embed new definitions; judgement stays with the arbiter.
type Applier struct {
	store store.GraphStore
	ai    ai.GraphAIClient
}

func New(st store.GraphStore, client ai.GraphAIClient) *Applier {
	return &Applier{store: st, ai: client}
}

// Split commits an accepted split decision built against snap. The parent is
// superseded, one child per sub-cluster is created, sampled instances follow
// their cluster, and everything outside the sample falls to the largest
// child. Version conflicts surface as store.ErrVersionConflict; any other
// store failure wraps lifecycle.ErrStoreWrite.
func (a *Applier) Split(ctx context.Context, snap store.Snapshot, ev *candidate.SplitEvidence, d *arbiter.Decision) (*store.CommitResult, error) {
	if !d.Accepted || d.Kind != arbiter.KindSplit {
		return nil, fmt.Errorf("split apply: decision is %s/%s", d.Kind, d.Classification)
	}
	if len(d.Children) != len(ev.Clusters) {
		return nil, fmt.Errorf("split apply: %d children for %d clusters", len(d.Children), len(ev.Clusters))
	}

	parent := ev.Type
	retirement := ontology.RetirementReplaced
	if d.Classification == arbiter.ClassDisambiguation {
		retirement = ontology.RetirementConflation
	}

	now := time.Now()
	children := make([]ontology.Type, len(d.Children))
	reassign := make(map[string]string)
	largest := 0
	for i, spec := range d.Children {
		trail := []string{spec.Label}
		if d.Classification == arbiter.ClassSpecialisation {
			trail = append(append([]string(nil), parent.LabelTrail...), spec.Label)
		}

		emb, err := a.embed(ctx, spec.Definition)
		if err != nil {
			return nil, fmt.Errorf("split apply: embedding child %q: %w", spec.Label, err)
		}

		children[i] = ontology.Type{
			ID:             gonanoid.Must(),
			Kind:           parent.Kind,
			LabelTrail:     trail,
			Definition:     spec.Definition,
			DefEmbedding:   emb,
			PropertySchema: parent.PropertySchema,
			Status:         ontology.StatusActive,
			CreatedAt:      now,
		}

		for _, instanceID := range ev.Clusters[i].Members {
			reassign[instanceID] = children[i].ID
		}
		if ev.Clusters[i].Size > ev.Clusters[largest].Size {
			largest = i
		}
	}

	op := ontology.OpSpecialisation
	if d.Classification == arbiter.ClassDisambiguation {
		op = ontology.OpDisambiguation
	}

	subjects := []string{parent.ID}
	for _, c := range children {
		subjects = append(subjects, c.ID)
	}

	commit := &store.Commit{
		CommitID:      gonanoid.Must(),
		ParentVersion: snap.Version(),
		Operation:     op,
		NewTypes:      children,
		Superseded:    []store.Supersession{{TypeID: parent.ID, Retirement: retirement}},
		Reassign:      reassign,
		ResidualType:  map[string]string{parent.ID: children[largest].ID},
		SubjectIDs:    subjects,
	}
	return a.submit(ctx, commit)
}

// Merge commits an accepted merge decision built against snap. The absorbed
// type is superseded, its label and aliases move onto the survivor, and all
// of its instances reassign to the survivor.
func (a *Applier) Merge(ctx context.Context, snap store.Snapshot, ev *candidate.MergeEvidence, d *arbiter.Decision) (*store.CommitResult, error) {
	if !d.Accepted || d.Kind != arbiter.KindMerge {
		return nil, fmt.Errorf("merge apply: decision is %s/%s", d.Kind, d.Classification)
	}

	switch d.Classification {
	case arbiter.ClassDeduplication, arbiter.ClassAbstraction:
	default:
		return nil, fmt.Errorf("merge apply: unexpected classification %s", d.Classification)
	}
	if d.CanonicalTypeID != ev.A.ID && d.CanonicalTypeID != ev.B.ID {
		return nil, fmt.Errorf("merge apply: canonical type %q is neither %q nor %q", d.CanonicalTypeID, ev.A.ID, ev.B.ID)
	}

	survivor, absorbed := ev.A, ev.B
	if d.CanonicalTypeID == ev.B.ID {
		survivor, absorbed = ev.B, ev.A
	}

	retirement := ontology.RetirementDuplicate
	if d.Classification == arbiter.ClassAbstraction {
		retirement = ontology.RetirementAbsorbed
	}

	updated := survivor
	updated.Definition = d.CanonicalDefinition
	updated.Aliases = mergeAliases(survivor, absorbed)
	if updated.Definition != survivor.Definition {
		emb, err := a.embed(ctx, updated.Definition)
		if err != nil {
			return nil, fmt.Errorf("merge apply: embedding %q: %w", updated.Label(), err)
		}
		updated.DefEmbedding = emb
	}

	commit := &store.Commit{
		CommitID:      gonanoid.Must(),
		ParentVersion: snap.Version(),
		Operation:     ontology.OpDeduplication,
		UpdatedTypes:  []ontology.Type{updated},
		Superseded:    []store.Supersession{{TypeID: absorbed.ID, Retirement: retirement}},
		ResidualType:  map[string]string{absorbed.ID: survivor.ID},
		SubjectIDs:    []string{survivor.ID, absorbed.ID},
	}
	if d.Classification == arbiter.ClassAbstraction {
		commit.Operation = ontology.OpAbstraction
	}
	return a.submit(ctx, commit)
}

// embed requests a definition embedding, retrying transient failures.
func (a *Applier) embed(ctx context.Context, definition string) ([]float32, error) {
	return util.RetryWithContext(ctx, embedTries, func(ctx context.Context) ([]float32, error) {
		return a.ai.GenerateEmbedding(ctx, []byte(definition))
	})
}

func (a *Applier) submit(ctx context.Context, commit *store.Commit) (*store.CommitResult, error) {
	res, err := a.store.Commit(ctx, commit)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, lifecycle.ErrInvariantViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: commit %s: %v", lifecycle.ErrStoreWrite, commit.CommitID, err)
	}
	logger.Info("[Apply] committed",
		"operation", commit.Operation,
		"version", res.Version,
		"commit", res.CommitID,
		"subjects", commit.SubjectIDs,
	)
	return res, nil
}

func mergeAliases(survivor, absorbed ontology.Type) []string {
	seen := map[string]bool{survivor.Label(): true}
	out := make([]string, 0, len(survivor.Aliases)+len(absorbed.Aliases)+1)
	add := func(alias string) {
		if alias == "" || seen[alias] {
			return
		}
		seen[alias] = true
		out = append(out, alias)
	}
	for _, al := range survivor.Aliases {
		add(al)
	}
	add(absorbed.Label())
	for _, al := range absorbed.Aliases {
		add(al)
	}
	return out
}
