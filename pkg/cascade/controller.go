// Package cascade drives the lifecycle worklist: screened types flow through
// evidence building, the gain gate, the arbiter, and the applier, and every
// commit re-enqueues its structural neighbours up to a bounded depth.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/apply"
	"github.com/OFFIS-RIT/taxo/pkg/arbiter"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/screen"
	"github.com/OFFIS-RIT/taxo/pkg/store"
)

// DecisionRecord is the audit entry for one arbiter consultation: verdicts,
// rejects, and consultations that failed in transit all produce one, each
// carrying the structural evidence the question was asked on.
type DecisionRecord struct {
	Time           time.Time              `json:"time"`
	TypeIDs        []string               `json:"type_ids"`
	Kind           arbiter.Kind           `json:"kind"`
	Classification arbiter.Classification `json:"classification,omitempty"`
	Accepted       bool                   `json:"accepted"`
	Gain           float64                `json:"gain"`
	Version        int64                  `json:"version,omitempty"`
	CommitID       string                 `json:"commit_id,omitempty"`
	Depth          int                    `json:"depth"`
	Reasoning      string                 `json:"reasoning,omitempty"`
	// Error is set when the consultation never produced a verdict (timeout,
	// transport failure, retries exhausted).
	Error    string          `json:"error,omitempty"`
	Evidence *EvidenceRecord `json:"evidence,omitempty"`
}

// ClusterRecord summarizes one sub-cluster of a split candidate for the
// audit trail.
type ClusterRecord struct {
	Size            int      `json:"size"`
	Fraction        float64  `json:"fraction"`
	Axes            []string `json:"axes,omitempty"`
	Representatives []string `json:"representatives,omitempty"`
}

// EvidenceRecord is the audit rendering of a candidate's structural
// evidence. Split and merge consultations fill disjoint field subsets.
type EvidenceRecord struct {
	K             int             `json:"k,omitempty"`
	Silhouette    float64         `json:"silhouette,omitempty"`
	Emergent      bool            `json:"emergent,omitempty"`
	Clusters      []ClusterRecord `json:"clusters,omitempty"`
	StructuralSim float64         `json:"structural_sim,omitempty"`
	ConceptualSim float64         `json:"conceptual_sim,omitempty"`
	Separability  float64         `json:"separability,omitempty"`
	SharedAxes    []string        `json:"shared_axes,omitempty"`
	DistinctA     []string        `json:"distinct_a,omitempty"`
	DistinctB     []string        `json:"distinct_b,omitempty"`
}

func splitEvidenceRecord(ev *candidate.SplitEvidence) *EvidenceRecord {
	rec := &EvidenceRecord{
		K:          ev.K,
		Silhouette: ev.Silhouette,
		Emergent:   ev.Emergent,
		Clusters:   make([]ClusterRecord, len(ev.Clusters)),
	}
	for i, c := range ev.Clusters {
		rec.Clusters[i] = ClusterRecord{
			Size:            c.Size,
			Fraction:        c.Fraction,
			Axes:            axisStrings(c.Axes),
			Representatives: c.Representatives,
		}
	}
	return rec
}

func mergeEvidenceRecord(ev *candidate.MergeEvidence) *EvidenceRecord {
	return &EvidenceRecord{
		StructuralSim: ev.StructuralSim,
		ConceptualSim: ev.ConceptualSim,
		Separability:  ev.Separability,
		SharedAxes:    axisStrings(ev.SharedAxes),
		DistinctA:     axisStrings(ev.DistinctA),
		DistinctB:     axisStrings(ev.DistinctB),
	}
}

func axisStrings(axes []ontology.Axis) []string {
	if len(axes) == 0 {
		return nil
	}
	out := make([]string, len(axes))
	for i, a := range axes {
		out[i] = a.String()
	}
	return out
}

// AuditSink archives decision records. Archiving is best-effort: a sink
// failure is logged, never propagated into the cascade.
type AuditSink interface {
	ArchiveDecision(ctx context.Context, rec *DecisionRecord) error
}

// Report summarizes one cascade run.
type Report struct {
	Screened     int
	Commits      int
	Splits       int
	Merges       int
	Rejected     int
	GainGated    int
	Skipped      int
	Conflicts    int
	DepthBounded int
	Records      []DecisionRecord
	EndVersion   int64
}

type workItem struct {
	typeID   string
	depth    int
	attempts int
}

// Controller owns the worklist of one cascade run. It is single-threaded by
// construction: commits serialize through it, so two candidates can never
// race each other onto overlapping instance sets.
type Controller struct {
	cfg      *lifecycle.Config
	store    store.GraphStore
	screener *screen.Screener
	splits   *candidate.SplitBuilder
	merges   *candidate.MergeBuilder
	gateway  *arbiter.Gateway
	applier  *apply.Applier
	audit    AuditSink
}

func NewController(
	cfg *lifecycle.Config,
	st store.GraphStore,
	screener *screen.Screener,
	splits *candidate.SplitBuilder,
	merges *candidate.MergeBuilder,
	gateway *arbiter.Gateway,
	applier *apply.Applier,
	audit AuditSink,
) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    st,
		screener: screener,
		splits:   splits,
		merges:   merges,
		gateway:  gateway,
		applier:  applier,
		audit:    audit,
	}
}

// Run processes the seed types and every cascade they trigger, until the
// worklist drains. Seeds enter at depth 0; types re-enqueued by a commit
// enter one level deeper, and nothing past DMax is processed.
func (c *Controller) Run(ctx context.Context, seeds []string) (*Report, error) {
	report := &Report{}
	queue := make([]workItem, 0, len(seeds))
	for _, id := range seeds {
		queue = append(queue, workItem{typeID: id})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item := queue[0]
		queue = queue[1:]

		if item.depth > c.cfg.DMax {
			report.DepthBounded++
			continue
		}

		next, err := c.process(ctx, item, report)
		if err != nil {
			if errors.Is(err, store.ErrVersionConflict) && item.attempts == 0 {
				// The registry moved underneath this candidate. Re-screen it
				// once against the new version.
				report.Conflicts++
				item.attempts++
				queue = append(queue, item)
				continue
			}
			if errors.Is(err, lifecycle.ErrInvariantViolation) {
				return report, err
			}
			logger.Error("[Cascade] candidate failed", "type", item.typeID, "depth", item.depth, "err", err)
			report.Rejected++
			continue
		}
		for _, id := range next {
			queue = append(queue, workItem{typeID: id, depth: item.depth + 1})
		}
	}

	snap, err := c.store.Snapshot(ctx)
	if err == nil {
		report.EndVersion = snap.Version()
	}
	return report, nil
}

// process screens one worklist item and walks it through whichever
// investigation its route calls for. It returns the type IDs to enqueue at
// the next depth (the commit's subjects plus their structural neighbours).
func (c *Controller) process(ctx context.Context, item workItem, report *Report) ([]string, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	t, err := snap.TypeByID(ctx, item.typeID)
	if err != nil || t == nil || !t.Active() {
		// Retired by an earlier commit in this run; nothing to do.
		report.Skipped++
		return nil, nil
	}

	res, err := c.screener.Screen(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	report.Screened++

	switch res.Route {
	case screen.RouteSkipped, screen.RouteNone:
		report.Skipped++
		return nil, nil
	case screen.RouteSplit:
		return c.investigateSplit(ctx, snap, t, item, report, false)
	case screen.RouteSplitThenMerge:
		return c.investigateSplit(ctx, snap, t, item, report, true)
	case screen.RouteMerge:
		return c.investigateMerge(ctx, snap, t, item, report)
	default:
		return nil, fmt.Errorf("unknown route %q for %s", res.Route, item.typeID)
	}
}

// investigateSplit walks a split candidate to a verdict. With fallthrough
// enabled (the split-then-merge route) a split that dies before or at the
// arbiter hands the type to the merge investigation instead; an arbiter
// transport failure does not, since the split question is still open.
func (c *Controller) investigateSplit(ctx context.Context, snap store.Snapshot, t *ontology.Type, item workItem, report *Report, fallthroughMerge bool) ([]string, error) {
	ev, err := c.splits.Build(ctx, snap, t)
	if err != nil {
		if errors.Is(err, lifecycle.ErrEvidenceInsufficient) {
			report.Skipped++
			return nil, nil
		}
		return nil, err
	}
	if ev == nil {
		if fallthroughMerge {
			return c.investigateMerge(ctx, snap, t, item, report)
		}
		report.Skipped++
		return nil, nil
	}

	gain, err := splitGain(ctx, c.cfg, snap, ev)
	if err != nil {
		return nil, err
	}
	if gain < c.cfg.Epsilon {
		report.GainGated++
		logger.Debug("[Cascade] split below gain gate", "type", t.ID, "gain", gain)
		if fallthroughMerge {
			return c.investigateMerge(ctx, snap, t, item, report)
		}
		return nil, nil
	}

	rec := DecisionRecord{
		Time:     time.Now(),
		TypeIDs:  []string{t.ID},
		Kind:     arbiter.KindSplit,
		Gain:     gain,
		Depth:    item.depth,
		Evidence: splitEvidenceRecord(ev),
	}

	d, err := c.gateway.DecideSplit(ctx, ev)
	if err != nil {
		rec.Error = err.Error()
		c.archive(ctx, &rec, report)
		return nil, err
	}
	rec.Classification = d.Classification
	rec.Accepted = d.Accepted
	rec.Reasoning = d.Reasoning

	if !d.Accepted {
		report.Rejected++
		c.archive(ctx, &rec, report)
		if fallthroughMerge {
			return c.investigateMerge(ctx, snap, t, item, report)
		}
		return nil, nil
	}

	res, err := c.applier.Split(ctx, snap, ev, d)
	if err != nil {
		return nil, err
	}
	rec.Version = res.Version
	rec.CommitID = res.CommitID
	c.archive(ctx, &rec, report)
	report.Commits++
	report.Splits++

	return c.store.AffectedTypes(ctx, []string{t.ID})
}

// investigateMerge walks the type's best merge pair to a verdict.
func (c *Controller) investigateMerge(ctx context.Context, snap store.Snapshot, t *ontology.Type, item workItem, report *Report) ([]string, error) {
	evs, err := c.merges.Build(ctx, snap, t)
	if err != nil {
		if errors.Is(err, lifecycle.ErrEvidenceInsufficient) {
			report.Skipped++
			return nil, nil
		}
		return nil, err
	}
	if len(evs) == 0 {
		report.Skipped++
		return nil, nil
	}
	ev := &evs[0]

	gain, err := mergeGain(ctx, c.cfg, snap, ev)
	if err != nil {
		return nil, err
	}
	if gain < c.cfg.Epsilon {
		report.GainGated++
		logger.Debug("[Cascade] merge below gain gate", "a", ev.A.ID, "b", ev.B.ID, "gain", gain)
		return nil, nil
	}

	rec := DecisionRecord{
		Time:     time.Now(),
		TypeIDs:  []string{ev.A.ID, ev.B.ID},
		Kind:     arbiter.KindMerge,
		Gain:     gain,
		Depth:    item.depth,
		Evidence: mergeEvidenceRecord(ev),
	}

	d, err := c.gateway.DecideMerge(ctx, ev)
	if err != nil {
		rec.Error = err.Error()
		c.archive(ctx, &rec, report)
		return nil, err
	}
	rec.Classification = d.Classification
	rec.Accepted = d.Accepted
	rec.Reasoning = d.Reasoning

	if !d.Accepted {
		report.Rejected++
		c.archive(ctx, &rec, report)
		return nil, nil
	}

	res, err := c.applier.Merge(ctx, snap, ev, d)
	if err != nil {
		return nil, err
	}
	rec.Version = res.Version
	rec.CommitID = res.CommitID
	c.archive(ctx, &rec, report)
	report.Commits++
	report.Merges++

	next, err := c.store.AffectedTypes(ctx, []string{ev.A.ID, ev.B.ID})
	if err != nil {
		return nil, err
	}
	// The survivor absorbed a second population; it deserves a fresh look.
	return append(next, d.CanonicalTypeID), nil
}

func (c *Controller) archive(ctx context.Context, rec *DecisionRecord, report *Report) {
	report.Records = append(report.Records, *rec)
	if c.audit == nil {
		return
	}
	if err := c.audit.ArchiveDecision(ctx, rec); err != nil {
		logger.Warn("[Cascade] audit archive failed", "err", err)
	}
}
