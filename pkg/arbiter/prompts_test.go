package arbiter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

func longReps(n int) []string {
	reps := make([]string, n)
	for i := range reps {
		reps[i] = fmt.Sprintf("instance-%04d %s", i, strings.Repeat("lorem ipsum dolor ", 20))
	}
	return reps
}

func TestSplitPromptKeepsInstructionsUnderBudget(t *testing.T) {
	ev := &candidate.SplitEvidence{
		Type: ontology.Type{
			ID:         "t-event",
			Kind:       ontology.KindEntity,
			LabelTrail: []string{"event"},
			Definition: "something that happens",
		},
		K:          2,
		Silhouette: 0.7,
		Clusters: []candidate.ClusterEvidence{
			{Size: 600, Fraction: 0.6, Representatives: longReps(400)},
			{Size: 400, Fraction: 0.4, Representatives: longReps(400)},
		},
	}

	prompt := splitPrompt(ev)

	for _, want := range []string{
		"Return exactly 2 children",
		`"specialisation"`,
		`"disambiguation"`,
		`"reject"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("oversized evidence dropped instruction text %q", want)
		}
	}
	if !strings.Contains(prompt, "Group 1:") || !strings.Contains(prompt, "Group 2:") {
		t.Error("group summaries missing from trimmed prompt")
	}
}

func TestMergePromptKeepsInstructionsUnderBudget(t *testing.T) {
	ev := &candidate.MergeEvidence{
		A: ontology.Type{
			ID: "ta", Kind: ontology.KindEntity,
			LabelTrail: []string{"firm"}, Definition: "a business",
		},
		B: ontology.Type{
			ID: "tb", Kind: ontology.KindEntity,
			LabelTrail: []string{"company"}, Definition: "a commercial organisation",
		},
		StructuralSim:    0.9,
		ConceptualSim:    0.9,
		Separability:     0.1,
		InstanceCountA:   500,
		InstanceCountB:   500,
		RepresentativesA: longReps(400),
		RepresentativesB: longReps(400),
	}

	prompt := mergePrompt(ev)

	for _, want := range []string{
		`"deduplication"`,
		`"abstraction"`,
		`"reject"`,
		"canonical_label",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("oversized evidence dropped instruction text %q", want)
		}
	}
	if !strings.Contains(prompt, `Type A: "firm"`) || !strings.Contains(prompt, `Type B: "company"`) {
		t.Error("type summaries missing from trimmed prompt")
	}
}

func TestCapReps(t *testing.T) {
	reps := []string{"a", "b", "c"}
	cases := []struct {
		limit int
		want  int
	}{
		{limit: 8, want: 3},
		{limit: 2, want: 2},
		{limit: 0, want: 0},
	}
	for _, tc := range cases {
		if got := len(capReps(reps, tc.limit)); got != tc.want {
			t.Errorf("capReps(3 reps, %d) kept %d, want %d", tc.limit, got, tc.want)
		}
	}
}
