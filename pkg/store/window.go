package store

import (
	"math"
	"sort"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

// Window is the temporal-window policy a snapshot applies when selecting the
// accumulated instances of a type.
type Window struct {
	Strategy  lifecycle.WindowStrategy
	Size      int
	DecayRate float64 // per-day weight decay for exponential-decay
}

// FullHistory is the default window: every instance, weight 1.
func FullHistory() Window {
	return Window{Strategy: lifecycle.WindowFullHistory}
}

// WindowFromConfig builds the snapshot window from engine configuration.
func WindowFromConfig(cfg *lifecycle.Config) Window {
	return Window{
		Strategy:  cfg.Window,
		Size:      cfg.WindowSize,
		DecayRate: cfg.DecayRate,
	}
}

// Apply selects and weights instances according to the policy. The input is
// not modified. Sliding-window keeps the Size most recent instances;
// exponential-decay keeps everything but down-weights by age.
func (w Window) Apply(instances []ontology.Instance, now time.Time) []ontology.Instance {
	out := make([]ontology.Instance, len(instances))
	copy(out, instances)
	for i := range out {
		out[i].Weight = 1
	}

	switch w.Strategy {
	case lifecycle.WindowSliding:
		if w.Size <= 0 || len(out) <= w.Size {
			return out
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return out[:w.Size]
	case lifecycle.WindowExponentialDecay:
		for i := range out {
			ageDays := now.Sub(out[i].CreatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			out[i].Weight = math.Exp(-w.DecayRate * ageDays)
		}
		return out
	default:
		return out
	}
}
