// Package engine runs lifecycle epochs: screen every active type against one
// pinned snapshot, then hand the routed types to the cascade controller.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/ai"
	"github.com/OFFIS-RIT/taxo/pkg/apply"
	"github.com/OFFIS-RIT/taxo/pkg/arbiter"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/cascade"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/screen"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine wires the lifecycle stages together and owns epoch scheduling
// against the store's document counter.
type Engine struct {
	cfg        *lifecycle.Config
	store      store.GraphStore
	screener   *screen.Screener
	controller *cascade.Controller

	epochLock sync.Mutex
}

// New assembles an engine over the given store and model client. audit may
// be nil to disable decision archiving.
func New(cfg *lifecycle.Config, st store.GraphStore, client ai.GraphAIClient, audit cascade.AuditSink) *Engine {
	screener := screen.NewScreener(cfg)
	controller := cascade.NewController(
		cfg,
		st,
		screener,
		candidate.NewSplitBuilder(cfg),
		candidate.NewMergeBuilder(cfg),
		arbiter.NewGateway(client, cfg),
		apply.New(st, client),
		audit,
	)
	return &Engine{
		cfg:        cfg,
		store:      st,
		screener:   screener,
		controller: controller,
	}
}

// EpochReport summarizes one full epoch.
type EpochReport struct {
	StartVersion int64
	EndVersion   int64
	TypesTotal   int
	Routes       map[screen.Route]int
	Cascade      *cascade.Report
	Duration     time.Duration
}

// RunEpoch screens every active type and runs the resulting cascade. Only
// one epoch runs at a time; a second caller blocks until the first is done.
func (e *Engine) RunEpoch(ctx context.Context) (*EpochReport, error) {
	e.epochLock.Lock()
	defer e.epochLock.Unlock()

	start := time.Now()
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	types, err := snap.ActiveTypes(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("[Engine] epoch started", "version", snap.Version(), "types", len(types))

	results := make([]*screen.Result, len(types))
	sem := semaphore.NewWeighted(int64(e.cfg.ScreenParallel))
	eg, ectx := errgroup.WithContext(ctx)
	for i := range types {
		idx := i
		t := &types[i]
		eg.Go(func() error {
			if err := sem.Acquire(ectx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			res, err := e.screener.Screen(ectx, snap, t)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &EpochReport{
		StartVersion: snap.Version(),
		TypesTotal:   len(types),
		Routes:       make(map[screen.Route]int),
	}
	var seeds []*screen.Result
	for _, res := range results {
		report.Routes[res.Route]++
		switch res.Route {
		case screen.RouteSplit, screen.RouteSplitThenMerge, screen.RouteMerge:
			seeds = append(seeds, res)
		}
	}

	// Split investigations run before merge investigations: a heterogeneous
	// type must not be merged while a split of it is still on the table.
	sort.SliceStable(seeds, func(i, j int) bool {
		return routeRank(seeds[i].Route) < routeRank(seeds[j].Route)
	})
	seedIDs := make([]string, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = s.TypeID
	}

	cr, err := e.controller.Run(ctx, seedIDs)
	if err != nil {
		return nil, err
	}
	report.Cascade = cr
	report.EndVersion = cr.EndVersion
	report.Duration = time.Since(start)

	logger.Info("[Engine] epoch finished",
		"version", report.EndVersion,
		"commits", cr.Commits,
		"splits", cr.Splits,
		"merges", cr.Merges,
		"rejected", cr.Rejected,
		"duration", report.Duration,
	)
	return report, nil
}

// IngestDocuments advances the document counter by n and runs an epoch when
// the scan interval is reached. It returns the epoch report, or nil when no
// epoch was due.
func (e *Engine) IngestDocuments(ctx context.Context, n int) (*EpochReport, error) {
	count, err := e.store.AddDocuments(ctx, n)
	if err != nil {
		return nil, err
	}
	if count < int64(e.cfg.ScanInterval) {
		return nil, nil
	}
	if err := e.store.ResetDocumentCount(ctx); err != nil {
		return nil, err
	}
	return e.RunEpoch(ctx)
}

func routeRank(r screen.Route) int {
	switch r {
	case screen.RouteSplit:
		return 0
	case screen.RouteSplitThenMerge:
		return 1
	default:
		return 2
	}
}
