package arbiter

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/taxo/internal/util"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"

	"github.com/pkoukk/tiktoken-go"
)

const systemPrompt = `You are the arbiter of a knowledge-graph type system.
Types classify entities and relations extracted from documents. Each type has
a label trail (general to specific), a definition, and accumulated instances
whose usage patterns have been analysed statistically.

You are only consulted when the statistics already show a clear structural
signal. Your job is to judge the CONCEPTUAL reading of that signal, never to
second-guess the statistics. Answer strictly in the requested JSON format.
Reject whenever the structural groups are stylistic or contextual variation
of one meaning rather than a real conceptual distinction or identity.`

// promptTokenBudget bounds evidence prompts. Prompts over budget are
// re-rendered with fewer example instances per group; the instruction
// scaffolding always survives intact.
const promptTokenBudget = 6000

// repLimits are the example-list caps tried in order when a prompt overruns
// the token budget.
var repLimits = []int{8, 4, 2, 1, 0}

func splitPrompt(ev *candidate.SplitEvidence) string {
	return trimToBudget(func(repLimit int) string {
		var b strings.Builder

		fmt.Fprintf(&b, "The %s type %q is under split investigation.\n", ev.Type.Kind, ev.Type.Label())
		fmt.Fprintf(&b, "Label trail: %s\n", strings.Join(ev.Type.LabelTrail, " > "))
		fmt.Fprintf(&b, "Definition: %s\n\n", ev.Type.Definition)
		fmt.Fprintf(&b, "Its instances fall into %d structural groups (partition quality %.2f).\n", ev.K, ev.Silhouette)
		if ev.Emergent {
			b.WriteString("The groups surfaced as dense regions rather than a clean hierarchical separation.\n")
		}
		b.WriteString("\n")

		for i, c := range ev.Clusters {
			fmt.Fprintf(&b, "Group %d: %d instances (%.0f%% of the type)\n", i+1, c.Size, c.Fraction*100)
			fmt.Fprintf(&b, "  Distinguishing usage: %s\n", describeAxes(c.Axes))
			if reps := capReps(c.Representatives, repLimit); len(reps) > 0 {
				fmt.Fprintf(&b, "  Example instances: %s\n", strings.Join(reps, ", "))
			}
		}

		fmt.Fprintf(&b, `
Judge the conceptual relationship of these groups:
- "specialisation" if they are genuine sub-senses of %q: name each group as a
  narrower type under the parent.
- "disambiguation" if %q conflated unrelated meanings: name each group as an
  independent type.
- "reject" if the groups reflect one meaning used in different ways.

Return exactly %d children for specialisation or disambiguation, in group
order, each with a concise lowercase label and a one-sentence definition.
`, ev.Type.Label(), ev.Type.Label(), ev.K)

		return b.String()
	}, promptTokenBudget)
}

func mergePrompt(ev *candidate.MergeEvidence) string {
	return trimToBudget(func(repLimit int) string {
		var b strings.Builder

		fmt.Fprintf(&b, "Two %s types are under merge investigation.\n\n", ev.A.Kind)
		writeMergeSide(&b, "A", &ev.A, ev.InstanceCountA, capReps(ev.RepresentativesA, repLimit))
		writeMergeSide(&b, "B", &ev.B, ev.InstanceCountB, capReps(ev.RepresentativesB, repLimit))

		fmt.Fprintf(&b, "Structural similarity %.2f, definition similarity %.2f.\n", ev.StructuralSim, ev.ConceptualSim)
		fmt.Fprintf(&b, "Pooled instances of both types are not separable along the type boundary (separation %.2f).\n", ev.Separability)
		fmt.Fprintf(&b, "Shared usage: %s\n", describeAxes(ev.SharedAxes))
		if len(ev.DistinctA) > 0 {
			fmt.Fprintf(&b, "Only %q: %s\n", ev.A.Label(), describeAxes(ev.DistinctA))
		}
		if len(ev.DistinctB) > 0 {
			fmt.Fprintf(&b, "Only %q: %s\n", ev.B.Label(), describeAxes(ev.DistinctB))
		}

		fmt.Fprintf(&b, `
Judge the conceptual relationship of the two types:
- "deduplication" if they are the same concept under two names: pick the
  canonical label (one of the two) and give a combined definition.
- "abstraction" if one strictly subsumes the other: set subsumed_label to the
  narrower label and canonical_label to the broader one.
- "reject" if they are related but genuinely distinct concepts.
`)

		return b.String()
	}, promptTokenBudget)
}

func writeMergeSide(b *strings.Builder, tag string, t *ontology.Type, count int, reps []string) {
	fmt.Fprintf(b, "Type %s: %q (trail: %s)\n", tag, t.Label(), strings.Join(t.LabelTrail, " > "))
	fmt.Fprintf(b, "  Definition: %s\n", t.Definition)
	if len(t.Aliases) > 0 {
		fmt.Fprintf(b, "  Aliases: %s\n", strings.Join(t.Aliases, ", "))
	}
	if len(reps) > 0 {
		fmt.Fprintf(b, "  %d instances, examples: %s\n\n", count, strings.Join(reps, ", "))
	} else {
		fmt.Fprintf(b, "  %d instances\n\n", count)
	}
}

// describeAxes renders profile axes with the role questions spelled out, so
// the model reads "who/what performs: deployment" instead of a raw edge key.
func describeAxes(axes []ontology.Axis) string {
	if len(axes) == 0 {
		return "(none)"
	}
	parts := make([]string, len(axes))
	for i, a := range axes {
		if r, ok := ontology.DefaultRoles[a.Role]; ok {
			parts[i] = fmt.Sprintf("%s (%s) with %s", a.Role, r.Question, a.CounterpartTypeID)
		} else {
			parts[i] = fmt.Sprintf("%s with %s", a.Role, a.CounterpartTypeID)
		}
	}
	return strings.Join(parts, "; ")
}

func capReps(reps []string, limit int) []string {
	return reps[:util.Min(len(reps), limit)]
}

// trimToBudget renders the prompt with progressively fewer example instances
// until it fits the token budget. The last rendering is returned even when it
// still overruns: everything but the example lists is essential.
func trimToBudget(render func(repLimit int) string, budget int) string {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return render(repLimits[0])
	}
	prompt := render(repLimits[0])
	for _, limit := range repLimits[1:] {
		if len(enc.Encode(prompt, nil, nil)) <= budget {
			break
		}
		prompt = render(limit)
	}
	return prompt
}
