// Package screen routes active types toward split or merge investigation
// from two cheap structural statistics: profile dispersion and the best
// silhouette any partition of the type achieves.
package screen

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/cluster"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/profile"
	"github.com/OFFIS-RIT/taxo/pkg/store"
)

// Route is the screening verdict for one type.
type Route string

const (
	// RouteNone: the type is well-formed, no investigation.
	RouteNone Route = "none"
	// RouteSplit: dispersed and separable, investigate a split.
	RouteSplit Route = "split"
	// RouteMerge: compact and inseparable, investigate merges.
	RouteMerge Route = "merge"
	// RouteSplitThenMerge: dispersed but poorly separable. Split is tried
	// first; only a rejected split falls through to merge investigation,
	// so a type hiding two clean sub-populations is never laundered into
	// a merge decision.
	RouteSplitThenMerge Route = "split-then-merge"
	// RouteSkipped: fewer than NMin instances, insufficient evidence.
	RouteSkipped Route = "skipped"
)

// Result is the screening outcome for one type.
type Result struct {
	TypeID        string
	Kind          ontology.TypeKind
	InstanceCount int
	Dispersion    float64
	Silhouette    float64
	Route         Route
}

// Screener computes per-type structural statistics against a snapshot.
type Screener struct {
	cfg *lifecycle.Config
}

func NewScreener(cfg *lifecycle.Config) *Screener {
	return &Screener{cfg: cfg}
}

// Screen evaluates one active type. Types below NMin instances are routed to
// RouteSkipped; this is a no-op for the epoch, not an operator-facing error.
func (s *Screener) Screen(ctx context.Context, snap store.Snapshot, t *ontology.Type) (*Result, error) {
	instances, err := snap.Instances(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("screening %s: %w", t.ID, err)
	}

	res := &Result{TypeID: t.ID, Kind: t.Kind, InstanceCount: len(instances)}
	if len(instances) < s.cfg.NMin {
		res.Route = RouteSkipped
		return res, nil
	}

	if len(instances) > s.cfg.SampleCap {
		instances = instances[:s.cfg.SampleCap]
	}

	m := profile.Build(instances)
	dist, err := cluster.Distances(m, cluster.Metric(s.cfg.DistanceMetric))
	if err != nil {
		return nil, fmt.Errorf("screening %s: %w", t.ID, err)
	}

	res.Dispersion = Dispersion(dist)
	dendro := cluster.Agglomerative(dist)
	_, _, best := cluster.BestCut(dist, dendro, s.cfg.MaxClusterK)
	res.Silhouette = best

	res.Route = route(res.Dispersion >= s.cfg.DispersionHigh, res.Silhouette >= s.cfg.ThetaSplit)
	return res, nil
}

// Dispersion is the mean pairwise distance of the matrix rows: a cheap
// variance statistic over the type's profiles.
func Dispersion(dist [][]float64) float64 {
	n := len(dist)
	if n < 2 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += dist[i][j]
			count++
		}
	}
	return sum / float64(count)
}

func route(dispersed, separable bool) Route {
	switch {
	case dispersed && separable:
		return RouteSplit
	case dispersed && !separable:
		return RouteSplitThenMerge
	case !dispersed && separable:
		return RouteNone
	default:
		return RouteMerge
	}
}
