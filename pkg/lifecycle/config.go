package lifecycle

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/taxo/internal/util"

	"github.com/go-playground/validator"
)

// WindowStrategy selects which accumulated instances a snapshot exposes to
// the detectors.
type WindowStrategy string

const (
	WindowFullHistory      WindowStrategy = "full-history"
	WindowSliding          WindowStrategy = "sliding-window"
	WindowExponentialDecay WindowStrategy = "exponential-decay"
)

// Config holds every tunable of the lifecycle engine. Loaded from the
// environment with FromEnv; all thresholds have working defaults.
type Config struct {
	// NMin is the minimum instance count before a type is screened at all.
	NMin int `validate:"gte=2"`
	// ThetaSplit is the minimum silhouette for a split candidate, and the
	// separability bound below which a fixed two-group partition is a merge
	// candidate.
	ThetaSplit float64 `validate:"gt=0,lt=1"`
	// ThetaMerge is the minimum TF-IDF structural cosine for a merge pair to
	// survive pre-screening.
	ThetaMerge float64 `validate:"gt=0,lt=1"`
	// PhiMin is the minimum fraction of the parent's instances each split
	// sub-cluster must hold.
	PhiMin float64 `validate:"gt=0,lt=0.5"`
	// Epsilon is the minimum estimated information gain for an operation to
	// reach the arbiter at all.
	Epsilon float64 `validate:"gte=0"`
	// Lambda weights the complexity penalty on active-type-count changes in
	// the gain estimate.
	Lambda float64 `validate:"gte=0"`
	// DMax bounds cascade propagation depth per originating trigger.
	DMax int `validate:"gte=0"`
	// DispersionHigh is the dispersion value above which a type counts as
	// structurally dispersed in the screening routing table.
	DispersionHigh float64 `validate:"gt=0,lt=1"`
	// ConceptualMin is the definition-embedding cosine below which a
	// structurally similar pair is rejected as semantically unrelated.
	ConceptualMin float64 `validate:"gte=-1,lte=1"`
	// MaxClusterK caps the dendrogram cuts evaluated per type.
	MaxClusterK int `validate:"gte=2"`
	// SampleCap bounds the instances loaded per type for clustering.
	SampleCap int `validate:"gte=10"`

	// ScanInterval is the number of ingested documents between scheduled
	// scans (epoch gating).
	ScanInterval int `validate:"gte=1"`
	// Window is the temporal-window policy for accumulated instance sets.
	Window WindowStrategy `validate:"oneof=full-history sliding-window exponential-decay"`
	// WindowSize is the instance count kept under sliding-window.
	WindowSize int `validate:"gte=1"`
	// DecayRate is the per-day weight decay under exponential-decay.
	DecayRate float64 `validate:"gte=0,lte=1"`

	// ArbiterTimeout bounds a single arbiter call.
	ArbiterTimeout time.Duration `validate:"gt=0"`
	// ArbiterRetries bounds re-asks on malformed responses.
	ArbiterRetries int `validate:"gte=1"`
	// ScreenParallel bounds concurrent per-type screening within an epoch.
	ScreenParallel int `validate:"gte=1"`

	// DistanceMetric selects the profile distance: "jaccard" or "cosine".
	DistanceMetric string `validate:"oneof=jaccard cosine"`
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset, and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		NMin:           int(util.GetEnvNumeric("LIFECYCLE_N_MIN", 12)),
		ThetaSplit:     util.GetEnvNumeric("LIFECYCLE_THETA_SPLIT", 0.35),
		ThetaMerge:     util.GetEnvNumeric("LIFECYCLE_THETA_MERGE", 0.80),
		PhiMin:         util.GetEnvNumeric("LIFECYCLE_PHI_MIN", 0.10),
		Epsilon:        util.GetEnvNumeric("LIFECYCLE_EPSILON", 0.02),
		Lambda:         util.GetEnvNumeric("LIFECYCLE_LAMBDA", 0.01),
		DMax:           int(util.GetEnvNumeric("LIFECYCLE_D_MAX", 3)),
		DispersionHigh: util.GetEnvNumeric("LIFECYCLE_DISPERSION_HIGH", 0.45),
		ConceptualMin:  util.GetEnvNumeric("LIFECYCLE_CONCEPTUAL_MIN", 0.55),
		MaxClusterK:    int(util.GetEnvNumeric("LIFECYCLE_MAX_CLUSTER_K", 6)),
		SampleCap:      int(util.GetEnvNumeric("LIFECYCLE_SAMPLE_CAP", 512)),
		ScanInterval:   int(util.GetEnvNumeric("LIFECYCLE_SCAN_INTERVAL", 50)),
		Window:         WindowStrategy(util.GetEnvString("LIFECYCLE_WINDOW", string(WindowFullHistory))),
		WindowSize:     int(util.GetEnvNumeric("LIFECYCLE_WINDOW_SIZE", 5000)),
		DecayRate:      util.GetEnvNumeric("LIFECYCLE_DECAY_RATE", 0.05),
		ArbiterTimeout: time.Duration(util.GetEnvNumeric("ARBITER_TIMEOUT_SEC", 90)) * time.Second,
		ArbiterRetries: int(util.GetEnvNumeric("ARBITER_RETRIES", 2)),
		ScreenParallel: int(util.GetEnvNumeric("LIFECYCLE_SCREEN_PARALLEL", 4)),
		DistanceMetric: util.GetEnvString("LIFECYCLE_DISTANCE_METRIC", "jaccard"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid lifecycle config: %w", err)
	}
	return cfg, nil
}
