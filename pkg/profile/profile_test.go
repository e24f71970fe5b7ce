package profile

import (
	"math"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

func inst(id string, axes ...string) ontology.Instance {
	in := ontology.Instance{ID: id, TypeID: "t"}
	for _, a := range axes {
		in.Edges = append(in.Edges, ontology.RoleEdge{
			Role:              a,
			CounterpartID:     "c-" + a,
			CounterpartTypeID: "ct-" + a,
		})
	}
	return in
}

func TestBuildDeterministicAxisOrder(t *testing.T) {
	instances := []ontology.Instance{
		inst("i1", "zeta", "alpha"),
		inst("i2", "mid"),
	}

	m := Build(instances)
	if m.N() != 2 {
		t.Fatalf("N() = %d, want 2", m.N())
	}

	wantAxes := []ontology.Axis{
		{Role: "alpha", CounterpartTypeID: "ct-alpha"},
		{Role: "mid", CounterpartTypeID: "ct-mid"},
		{Role: "zeta", CounterpartTypeID: "ct-zeta"},
	}
	if !reflect.DeepEqual(m.Axes, wantAxes) {
		t.Errorf("Axes = %v, want %v", m.Axes, wantAxes)
	}

	// Same instance set in a different order must yield the same axis order.
	m2 := Build([]ontology.Instance{instances[1], instances[0]})
	if !reflect.DeepEqual(m2.Axes, wantAxes) {
		t.Errorf("reordered Axes = %v, want %v", m2.Axes, wantAxes)
	}
}

func TestBuildWeightsRows(t *testing.T) {
	weighted := inst("i1", "a")
	weighted.Weight = 0.5
	m := Build([]ontology.Instance{weighted})

	if got := m.Rows[0][0]; got != 0.5 {
		t.Errorf("weighted row value = %v, want 0.5", got)
	}

	// Zero weight defaults to 1.
	m = Build([]ontology.Instance{inst("i2", "a", "a")})
	if got := m.Rows[0][0]; got != 2 {
		t.Errorf("unweighted duplicate-edge row value = %v, want 2", got)
	}
}

func TestDistinguishingAxes(t *testing.T) {
	instances := []ontology.Instance{
		inst("i1", "shared", "only-a"),
		inst("i2", "shared", "only-a"),
		inst("i3", "shared", "only-b"),
		inst("i4", "shared", "only-b"),
	}
	m := Build(instances)

	axes := m.DistinguishingAxes([]int{0, 1}, 2)
	if len(axes) != 2 {
		t.Fatalf("got %d axes, want 2", len(axes))
	}
	for _, a := range axes {
		if a.Role == "shared" {
			t.Errorf("shared axis %v reported as distinguishing", a)
		}
	}

	if got := m.DistinguishingAxes(nil, 3); got != nil {
		t.Errorf("empty member set should yield nil, got %v", got)
	}
	if got := m.DistinguishingAxes([]int{0, 1, 2, 3}, 3); got != nil {
		t.Errorf("full member set should yield nil, got %v", got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "scaled", a: []float64{1, 1}, b: []float64{5, 5}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical support", a: []float64{1, 2, 0}, b: []float64{3, 1, 0}, want: 1},
		{name: "disjoint support", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "half overlap", a: []float64{1, 1, 0}, b: []float64{0, 1, 1}, want: 1.0 / 3.0},
		{name: "both empty", a: []float64{0, 0}, b: []float64{0, 0}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineF32(t *testing.T) {
	if got := CosineF32([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical = %v, want 1", got)
	}
	if got := CosineF32(nil, []float32{1}); got != 0 {
		t.Errorf("nil vector = %v, want 0", got)
	}
}

func TestAggregateSignatureAxesSets(t *testing.T) {
	a := AggregateSignature([]ontology.Instance{inst("i1", "x", "y")})
	b := AggregateSignature([]ontology.Instance{inst("i2", "y", "z")})

	shared := SharedAxes(a, b)
	if len(shared) != 1 || shared[0].Role != "y" {
		t.Errorf("SharedAxes = %v, want single y axis", shared)
	}
	distinct := DistinctAxes(a, b)
	if len(distinct) != 1 || distinct[0].Role != "x" {
		t.Errorf("DistinctAxes = %v, want single x axis", distinct)
	}
}

func TestTFIDF(t *testing.T) {
	signatures := map[string]Signature{
		"a": AggregateSignature([]ontology.Instance{inst("i1", "common", "a-only")}),
		"b": AggregateSignature([]ontology.Instance{inst("i2", "common", "b-only")}),
		"c": AggregateSignature([]ontology.Instance{inst("i3", "common", "a-only")}),
	}

	vectors := TFIDF(signatures)
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	for id, v := range vectors {
		if len(v) != 3 {
			t.Fatalf("vector %q has %d dims, want 3", id, len(v))
		}
	}

	// a and c share every axis, a and b only the common one.
	simAC := Cosine(vectors["a"], vectors["c"])
	simAB := Cosine(vectors["a"], vectors["b"])
	if simAC <= simAB {
		t.Errorf("Cosine(a,c) = %v should exceed Cosine(a,b) = %v", simAC, simAB)
	}

	if TFIDF(nil) != nil {
		t.Error("TFIDF(nil) should be nil")
	}
}
