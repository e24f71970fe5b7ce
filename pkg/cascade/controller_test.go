package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/ai"
	"github.com/OFFIS-RIT/taxo/pkg/apply"
	"github.com/OFFIS-RIT/taxo/pkg/arbiter"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/screen"
	"github.com/OFFIS-RIT/taxo/pkg/store"
	"github.com/OFFIS-RIT/taxo/pkg/store/memory"
)

// loopClient answers every schema-constrained call with the same JSON payload.
type loopClient struct {
	answer string
	calls  int
}

func (c *loopClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	c.calls++
	return json.Unmarshal([]byte(c.answer), out)
}

func (c *loopClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (c *loopClient) ResetMetrics()               {}
func (c *loopClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type recordingSink struct {
	records []DecisionRecord
}

func (s *recordingSink) ArchiveDecision(ctx context.Context, rec *DecisionRecord) error {
	s.records = append(s.records, *rec)
	return nil
}

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
		ScanInterval:   50,
		Window:         lifecycle.WindowFullHistory,
		ArbiterTimeout: time.Minute,
		ArbiterRetries: 2,
		ScreenParallel: 1,
		DistanceMetric: "jaccard",
	}
}

func newController(cfg *lifecycle.Config, st store.GraphStore, client ai.GraphAIClient, sink AuditSink) *Controller {
	return NewController(
		cfg,
		st,
		screen.NewScreener(cfg),
		candidate.NewSplitBuilder(cfg),
		candidate.NewMergeBuilder(cfg),
		arbiter.NewGateway(client, cfg),
		apply.New(st, client),
		sink,
	)
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

// splitStore seeds a heterogeneous type t1 (two disjoint structural groups)
// and a small neighbour type tn whose instances point at t1.
func splitStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New(store.FullHistory())
	err := st.SeedTypes([]ontology.Type{
		{ID: "t1", Kind: ontology.KindEntity, LabelTrail: []string{"partner"}, Definition: "a business partner", Status: ontology.StatusActive},
		{ID: "tn", Kind: ontology.KindRelation, LabelTrail: []string{"contracts_with"}, Definition: "a contract relation", Status: ontology.StatusActive},
	})
	if err != nil {
		t.Fatalf("SeedTypes: %v", err)
	}

	var instances []ontology.Instance
	for i := 0; i < 4; i++ {
		instances = append(instances, instWithAxes(fmt.Sprintf("a%d", i), "t1", "employer", "salary"))
		instances = append(instances, instWithAxes(fmt.Sprintf("b%d", i), "t1", "client", "invoice"))
	}
	instances = append(instances, ontology.Instance{
		ID:     "n1",
		TypeID: "tn",
		Edges:  []ontology.RoleEdge{{Role: "party", CounterpartID: "a0", CounterpartTypeID: "t1"}},
	})
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

func TestRunSplitCascade(t *testing.T) {
	st := splitStore(t)
	sink := &recordingSink{}
	c := newController(testConfig(), st, &loopClient{answer: specialisationAnswer}, sink)

	report, err := c.Run(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Splits != 1 || report.Commits != 1 {
		t.Errorf("splits/commits = %d/%d, want 1/1", report.Splits, report.Commits)
	}
	if report.EndVersion != 2 {
		t.Errorf("end version = %d, want 2", report.EndVersion)
	}
	// The neighbour was re-enqueued by the commit but sits below NMin.
	if report.Skipped == 0 {
		t.Error("neighbour type was never processed")
	}

	if len(sink.records) != 1 {
		t.Fatalf("archived %d records, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if !rec.Accepted || rec.Classification != arbiter.ClassSpecialisation {
		t.Errorf("record = %+v, want accepted specialisation", rec)
	}
	if rec.Version != 2 || rec.CommitID == "" {
		t.Errorf("record version/commit = %d/%q, want committed", rec.Version, rec.CommitID)
	}
	if rec.Evidence == nil {
		t.Fatal("record carries no evidence bundle")
	}
	if rec.Evidence.K != 2 || len(rec.Evidence.Clusters) != 2 {
		t.Errorf("evidence K/clusters = %d/%d, want 2/2", rec.Evidence.K, len(rec.Evidence.Clusters))
	}

	t1, _ := st.TypeByID("t1")
	if t1.Active() {
		t.Error("split parent still active")
	}
}

func TestRunDepthBound(t *testing.T) {
	st := splitStore(t)
	cfg := testConfig()
	cfg.DMax = 0
	c := newController(cfg, st, &loopClient{answer: specialisationAnswer}, nil)

	report, err := c.Run(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Commits != 1 {
		t.Errorf("commits = %d, want 1", report.Commits)
	}
	// The re-enqueued neighbour lands at depth 1, past the bound.
	if report.DepthBounded != 1 {
		t.Errorf("depth bounded = %d, want 1", report.DepthBounded)
	}
}

func TestRunGainGate(t *testing.T) {
	st := splitStore(t)
	cfg := testConfig()
	cfg.Epsilon = 0.9
	client := &loopClient{answer: specialisationAnswer}
	c := newController(cfg, st, client, nil)

	report, err := c.Run(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.GainGated != 1 {
		t.Errorf("gain gated = %d, want 1", report.GainGated)
	}
	if report.Commits != 0 {
		t.Errorf("commits = %d, want 0", report.Commits)
	}
	// The arbiter must never have been consulted.
	if client.calls != 0 {
		t.Errorf("arbiter called %d times, want 0", client.calls)
	}
}

func TestRunRejectedSplitArchived(t *testing.T) {
	st := splitStore(t)
	sink := &recordingSink{}
	client := &loopClient{answer: `{"verdict": "reject", "children": [], "reasoning": "one concept"}`}
	c := newController(testConfig(), st, client, sink)

	report, err := c.Run(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rejected != 1 || report.Commits != 0 {
		t.Errorf("rejected/commits = %d/%d, want 1/0", report.Rejected, report.Commits)
	}
	if len(sink.records) != 1 || sink.records[0].Accepted {
		t.Fatalf("records = %+v, want one rejected record", sink.records)
	}

	t1, _ := st.TypeByID("t1")
	if !t1.Active() {
		t.Error("rejected split still retired the type")
	}
}

func TestRunMergeCascade(t *testing.T) {
	st := memory.New(store.FullHistory())
	emb := []float32{1, 0}
	err := st.SeedTypes([]ontology.Type{
		{ID: "ta", Kind: ontology.KindEntity, LabelTrail: []string{"company"}, Definition: "a commercial organisation", DefEmbedding: emb, Status: ontology.StatusActive},
		{ID: "tb", Kind: ontology.KindEntity, LabelTrail: []string{"organisation"}, Definition: "an organised body", DefEmbedding: emb, Status: ontology.StatusActive},
	})
	if err != nil {
		t.Fatalf("SeedTypes: %v", err)
	}
	var instances []ontology.Instance
	for i := 0; i < 4; i++ {
		instances = append(instances, instWithAxes(fmt.Sprintf("a%d", i), "ta", "employs", "located_in"))
		instances = append(instances, instWithAxes(fmt.Sprintf("b%d", i), "tb", "employs", "located_in"))
	}
	if err := st.AddInstances(instances); err != nil {
		t.Fatalf("AddInstances: %v", err)
	}

	cfg := testConfig()
	cfg.Lambda = 0.05
	client := &loopClient{answer: `{
		"verdict": "deduplication",
		"canonical_label": "company",
		"canonical_definition": "a commercial organisation",
		"subsumed_label": "",
		"reasoning": "same concept"
	}`}
	c := newController(cfg, st, client, nil)

	report, err := c.Run(context.Background(), []string{"ta", "tb"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Merges != 1 || report.Commits != 1 {
		t.Errorf("merges/commits = %d/%d, want 1/1", report.Merges, report.Commits)
	}

	tb, _ := st.TypeByID("tb")
	if tb.Active() {
		t.Error("absorbed type still active")
	}
	for i := 0; i < 4; i++ {
		if got, _ := st.InstanceTypeID(fmt.Sprintf("b%d", i)); got != "ta" {
			t.Errorf("instance b%d on %q, want ta", i, got)
		}
	}
}

// downClient fails every schema-constrained call with a transport error.
type downClient struct{}

func (downClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("connection refused")
}

func (downClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (downClient) ResetMetrics()               {}
func (downClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func TestRunArbiterFailureArchived(t *testing.T) {
	st := splitStore(t)
	sink := &recordingSink{}
	c := newController(testConfig(), st, downClient{}, sink)

	report, err := c.Run(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Commits != 0 {
		t.Errorf("commits = %d, want 0", report.Commits)
	}

	if len(sink.records) != 1 {
		t.Fatalf("archived %d records, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Error == "" {
		t.Error("failed consultation archived without its error")
	}
	if rec.Accepted {
		t.Error("failed consultation archived as accepted")
	}
	if rec.Evidence == nil {
		t.Error("failed consultation archived without its evidence bundle")
	}
}

func TestRunCancelledContext(t *testing.T) {
	st := splitStore(t)
	c := newController(testConfig(), st, &loopClient{answer: specialisationAnswer}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx, []string{"t1"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
