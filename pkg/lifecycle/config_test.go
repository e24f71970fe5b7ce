package lifecycle

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.NMin != 12 {
		t.Errorf("NMin = %d, want 12", cfg.NMin)
	}
	if cfg.ThetaSplit != 0.35 {
		t.Errorf("ThetaSplit = %v, want 0.35", cfg.ThetaSplit)
	}
	if cfg.ThetaMerge != 0.80 {
		t.Errorf("ThetaMerge = %v, want 0.80", cfg.ThetaMerge)
	}
	if cfg.DMax != 3 {
		t.Errorf("DMax = %d, want 3", cfg.DMax)
	}
	if cfg.Window != WindowFullHistory {
		t.Errorf("Window = %q, want full-history", cfg.Window)
	}
	if cfg.ArbiterTimeout != 90*time.Second {
		t.Errorf("ArbiterTimeout = %v, want 90s", cfg.ArbiterTimeout)
	}
	if cfg.DistanceMetric != "jaccard" {
		t.Errorf("DistanceMetric = %q, want jaccard", cfg.DistanceMetric)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LIFECYCLE_N_MIN", "20")
	t.Setenv("LIFECYCLE_THETA_SPLIT", "0.5")
	t.Setenv("LIFECYCLE_WINDOW", "sliding-window")
	t.Setenv("LIFECYCLE_WINDOW_SIZE", "100")
	t.Setenv("ARBITER_TIMEOUT_SEC", "30")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.NMin != 20 {
		t.Errorf("NMin = %d, want 20", cfg.NMin)
	}
	if cfg.ThetaSplit != 0.5 {
		t.Errorf("ThetaSplit = %v, want 0.5", cfg.ThetaSplit)
	}
	if cfg.Window != WindowSliding || cfg.WindowSize != 100 {
		t.Errorf("window = %q/%d, want sliding-window/100", cfg.Window, cfg.WindowSize)
	}
	if cfg.ArbiterTimeout != 30*time.Second {
		t.Errorf("ArbiterTimeout = %v, want 30s", cfg.ArbiterTimeout)
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "silhouette threshold above one", key: "LIFECYCLE_THETA_SPLIT", value: "1.5"},
		{name: "negative depth bound", key: "LIFECYCLE_D_MAX", value: "-1"},
		{name: "unknown window strategy", key: "LIFECYCLE_WINDOW", value: "lunar"},
		{name: "unknown distance metric", key: "LIFECYCLE_DISTANCE_METRIC", value: "euclid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("FromEnv accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}
