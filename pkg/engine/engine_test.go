package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/ai"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/screen"
	"github.com/OFFIS-RIT/taxo/pkg/store"
	"github.com/OFFIS-RIT/taxo/pkg/store/memory"
)

type fakeClient struct {
	answer string
}

func (c *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return json.Unmarshal([]byte(c.answer), out)
}

func (c *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (c *fakeClient) ResetMetrics()               {}
func (c *fakeClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testConfig() *lifecycle.Config {
	return &lifecycle.Config{
		NMin:           4,
		ThetaSplit:     0.35,
		ThetaMerge:     0.80,
		PhiMin:         0.10,
		Epsilon:        0.02,
		Lambda:         0.01,
		DMax:           3,
		DispersionHigh: 0.45,
		ConceptualMin:  0.55,
		MaxClusterK:    6,
		SampleCap:      512,
		ScanInterval:   3,
		Window:         lifecycle.WindowFullHistory,
		ArbiterTimeout: time.Minute,
		ArbiterRetries: 2,
		ScreenParallel: 2,
		DistanceMetric: "jaccard",
	}
}

func instWithAxes(id, typeID string, axes ...string) ontology.Instance {
	in := ontology.Instance{ID: id, TypeID: typeID}
	for _, a := range axes {
		in.Edges = append(in.Edges, ontology.RoleEdge{
			Role:              a,
			CounterpartID:     "c-" + a,
			CounterpartTypeID: "ct-" + a,
		})
	}
	return in
}

// epochStore seeds three entity types: t1 heterogeneous (split material), t2
// compact with no merge partner, t3 too small to screen.
func epochStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New(store.FullHistory())
	err := st.SeedTypes([]ontology.Type{
		{ID: "t1", Kind: ontology.KindEntity, LabelTrail: []string{"partner"}, Definition: "a business partner", Status: ontology.StatusActive},
		{ID: "t2", Kind: ontology.KindEntity, LabelTrail: []string{"invoice"}, Definition: "a bill", Status: ontology.StatusActive},
		{ID: "t3", Kind: ontology.KindEntity, LabelTrail: []string{"note"}, Definition: "a free-form note", Status: ontology.StatusActive},
	})
	if err != nil {
		t.Fatalf("SeedTypes: %v", err)
	}

	var instances []ontology.Instance
	for i := 0; i < 4; i++ {
		instances = append(instances, instWithAxes(fmt.Sprintf("a%d", i), "t1", "employer", "salary"))
		instances = append(instances, instWithAxes(fmt.Sprintf("b%d", i), "t1", "client", "invoice"))
		instances = append(instances, instWithAxes(fmt.Sprintf("c%d", i), "t2", "billed_to"))
	}
	instances = append(instances, instWithAxes("d0", "t3", "about"))
	if err := st.AddInstances(instances); err != nil {
		t.Fatalf("AddInstances: %v", err)
	}
	return st
}

const specialisationAnswer = `{
	"verdict": "specialisation",
	"children": [
		{"label": "employee", "definition": "a partner in an employment relation"},
		{"label": "contractor", "definition": "a partner billing for services"}
	],
	"reasoning": "distinct engagement models"
}`

func TestRunEpoch(t *testing.T) {
	st := epochStore(t)
	eng := New(testConfig(), st, &fakeClient{answer: specialisationAnswer}, nil)

	report, err := eng.RunEpoch(context.Background())
	if err != nil {
		t.Fatalf("RunEpoch: %v", err)
	}

	if report.StartVersion != 1 {
		t.Errorf("start version = %d, want 1", report.StartVersion)
	}
	if report.TypesTotal != 3 {
		t.Errorf("types total = %d, want 3", report.TypesTotal)
	}
	if report.Routes[screen.RouteSplit] != 1 {
		t.Errorf("split routes = %d, want 1", report.Routes[screen.RouteSplit])
	}
	if report.Routes[screen.RouteSkipped] != 1 {
		t.Errorf("skipped routes = %d, want 1", report.Routes[screen.RouteSkipped])
	}
	if report.Cascade == nil {
		t.Fatal("no cascade report")
	}
	if report.Cascade.Splits != 1 {
		t.Errorf("splits = %d, want 1", report.Cascade.Splits)
	}
	if report.EndVersion != 2 {
		t.Errorf("end version = %d, want 2", report.EndVersion)
	}

	t1, _ := st.TypeByID("t1")
	if t1.Active() {
		t.Error("split parent still active after epoch")
	}
	snap, _ := st.Snapshot(context.Background())
	types, _ := snap.ActiveTypes(context.Background())
	if len(types) != 4 {
		t.Errorf("active types after epoch = %d, want 4", len(types))
	}
}

func TestRunEpochStableRegistry(t *testing.T) {
	// A second epoch over the already reshaped registry commits nothing.
	st := epochStore(t)
	eng := New(testConfig(), st, &fakeClient{answer: specialisationAnswer}, nil)

	if _, err := eng.RunEpoch(context.Background()); err != nil {
		t.Fatalf("first epoch: %v", err)
	}
	second, err := eng.RunEpoch(context.Background())
	if err != nil {
		t.Fatalf("second epoch: %v", err)
	}
	if second.Cascade.Commits != 0 {
		t.Errorf("second epoch commits = %d, want 0", second.Cascade.Commits)
	}
	if second.StartVersion != second.EndVersion {
		t.Errorf("stable registry moved from %d to %d", second.StartVersion, second.EndVersion)
	}
}

func TestIngestDocumentsGatesEpochs(t *testing.T) {
	st := epochStore(t)
	eng := New(testConfig(), st, &fakeClient{answer: specialisationAnswer}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := eng.IngestDocuments(ctx, 1)
		if err != nil {
			t.Fatalf("IngestDocuments: %v", err)
		}
		if report != nil {
			t.Fatalf("epoch ran after %d documents, interval is 3", i+1)
		}
	}

	report, err := eng.IngestDocuments(ctx, 1)
	if err != nil {
		t.Fatalf("IngestDocuments: %v", err)
	}
	if report == nil {
		t.Fatal("no epoch after reaching the scan interval")
	}

	// The counter was reset; the next document does not trigger again.
	report, err = eng.IngestDocuments(ctx, 1)
	if err != nil {
		t.Fatalf("IngestDocuments: %v", err)
	}
	if report != nil {
		t.Error("epoch ran again immediately after reset")
	}
}
