package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/taxo/pkg/ai"
	"github.com/OFFIS-RIT/taxo/pkg/candidate"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
)

// Gateway is the single path from structural evidence to an arbiter
// decision. Every consultation is bounded by the configured timeout, retried
// on malformed answers, and validated against the evidence before anything
// downstream sees it.
type Gateway struct {
	client ai.GraphAIClient
	cfg    *lifecycle.Config
}

func NewGateway(client ai.GraphAIClient, cfg *lifecycle.Config) *Gateway {
	return &Gateway{client: client, cfg: cfg}
}

type childWire struct {
	Label      string `json:"label"`
	Definition string `json:"definition"`
}

type splitWire struct {
	Verdict   string      `json:"verdict" jsonschema:"enum=specialisation,enum=disambiguation,enum=reject"`
	Children  []childWire `json:"children"`
	Reasoning string      `json:"reasoning"`
}

type mergeWire struct {
	Verdict             string `json:"verdict" jsonschema:"enum=deduplication,enum=abstraction,enum=reject"`
	CanonicalLabel      string `json:"canonical_label"`
	CanonicalDefinition string `json:"canonical_definition"`
	SubsumedLabel       string `json:"subsumed_label"`
	Reasoning           string `json:"reasoning"`
}

// DecideSplit puts a split candidate to the arbiter. Malformed answers are
// re-asked up to the configured retry count; what survives is structurally
// consistent with the evidence (child count matches the partition, labels
// well-formed) or an error from the lifecycle taxonomy.
func (g *Gateway) DecideSplit(ctx context.Context, ev *candidate.SplitEvidence) (*Decision, error) {
	prompt := splitPrompt(ev)

	var lastErr error
	for attempt := 0; attempt <= g.cfg.ArbiterRetries; attempt++ {
		resp := splitWire{}
		if err := g.call(ctx, "split_verdict", "Verdict on splitting one type into sub-types", prompt, &resp); err != nil {
			if errors.Is(err, lifecycle.ErrArbiterMalformed) {
				logger.Warn("[Arbiter] malformed split answer", "type", ev.Type.ID, "attempt", attempt, "err", err)
				lastErr = err
				continue
			}
			return nil, err
		}

		d, err := validateSplit(ev, &resp)
		if err != nil {
			logger.Warn("[Arbiter] inconsistent split answer", "type", ev.Type.ID, "attempt", attempt, "err", err)
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, lastErr
}

// DecideMerge puts a merge candidate to the arbiter.
func (g *Gateway) DecideMerge(ctx context.Context, ev *candidate.MergeEvidence) (*Decision, error) {
	prompt := mergePrompt(ev)

	var lastErr error
	for attempt := 0; attempt <= g.cfg.ArbiterRetries; attempt++ {
		resp := mergeWire{}
		if err := g.call(ctx, "merge_verdict", "Verdict on merging two types", prompt, &resp); err != nil {
			if errors.Is(err, lifecycle.ErrArbiterMalformed) {
				logger.Warn("[Arbiter] malformed merge answer", "a", ev.A.ID, "b", ev.B.ID, "attempt", attempt, "err", err)
				lastErr = err
				continue
			}
			return nil, err
		}

		d, err := validateMerge(ev, &resp)
		if err != nil {
			logger.Warn("[Arbiter] inconsistent merge answer", "a", ev.A.ID, "b", ev.B.ID, "attempt", attempt, "err", err)
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, lastErr
}

// call runs one schema-constrained consultation under the arbiter timeout
// and maps failures onto the lifecycle error taxonomy.
func (g *Gateway) call(ctx context.Context, name, description, prompt string, out any) error {
	rCtx, cancel := context.WithTimeout(ctx, g.cfg.ArbiterTimeout)
	defer cancel()

	err := g.client.GenerateCompletionWithFormat(
		rCtx, name, description, prompt, out,
		ai.WithSystemPrompts(systemPrompt),
	)
	if err == nil {
		return nil
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %v", lifecycle.ErrArbiterTimeout, g.cfg.ArbiterTimeout, err)
	case isMalformed(err):
		return fmt.Errorf("%w: %v", lifecycle.ErrArbiterMalformed, err)
	default:
		return fmt.Errorf("%w: %v", lifecycle.ErrArbiterUnavailable, err)
	}
}

// isMalformed recognizes parse-level failures surfaced by the AI clients.
// Anything else coming back from a call is transport trouble.
func isMalformed(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "json repair failed") ||
		strings.Contains(msg, "unmarshal failed") ||
		strings.Contains(msg, "empty response")
}

func validateSplit(ev *candidate.SplitEvidence, resp *splitWire) (*Decision, error) {
	switch resp.Verdict {
	case string(ClassReject):
		return &Decision{
			Kind:           KindSplit,
			Classification: ClassReject,
			Reasoning:      resp.Reasoning,
		}, nil
	case string(ClassSpecialisation), string(ClassDisambiguation):
	default:
		return nil, fmt.Errorf("%w: split verdict %q", lifecycle.ErrArbiterMalformed, resp.Verdict)
	}

	if len(resp.Children) != ev.K {
		return nil, fmt.Errorf("%w: %d children for %d groups", lifecycle.ErrArbiterMalformed, len(resp.Children), ev.K)
	}

	parent := strings.ToLower(ev.Type.Label())
	seen := map[string]bool{}
	children := make([]ChildSpec, len(resp.Children))
	for i, c := range resp.Children {
		label := strings.ToLower(strings.TrimSpace(c.Label))
		def := strings.TrimSpace(c.Definition)
		if label == "" || def == "" {
			return nil, fmt.Errorf("%w: empty child label or definition", lifecycle.ErrArbiterMalformed)
		}
		if label == parent {
			return nil, fmt.Errorf("%w: child label repeats parent %q", lifecycle.ErrArbiterMalformed, parent)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: duplicate child label %q", lifecycle.ErrArbiterMalformed, label)
		}
		seen[label] = true
		children[i] = ChildSpec{Label: label, Definition: def}
	}

	return &Decision{
		Kind:           KindSplit,
		Classification: Classification(resp.Verdict),
		Accepted:       true,
		Children:       children,
		Reasoning:      resp.Reasoning,
	}, nil
}

func validateMerge(ev *candidate.MergeEvidence, resp *mergeWire) (*Decision, error) {
	switch resp.Verdict {
	case string(ClassReject):
		return &Decision{
			Kind:           KindMerge,
			Classification: ClassReject,
			Reasoning:      resp.Reasoning,
		}, nil
	case string(ClassDeduplication), string(ClassAbstraction):
	default:
		return nil, fmt.Errorf("%w: merge verdict %q", lifecycle.ErrArbiterMalformed, resp.Verdict)
	}

	labelA := strings.ToLower(ev.A.Label())
	labelB := strings.ToLower(ev.B.Label())
	canonical := strings.ToLower(strings.TrimSpace(resp.CanonicalLabel))

	// Resolve the label to an evidence side here, while both normalized
	// forms are at hand. Registry labels are free text, so downstream
	// comparisons against the lowercased label would misfire.
	var canonicalID string
	switch canonical {
	case labelA:
		canonicalID = ev.A.ID
	case labelB:
		canonicalID = ev.B.ID
	default:
		return nil, fmt.Errorf("%w: canonical label %q is neither %q nor %q", lifecycle.ErrArbiterMalformed, canonical, labelA, labelB)
	}

	d := &Decision{
		Kind:                KindMerge,
		Classification:      Classification(resp.Verdict),
		Accepted:            true,
		CanonicalLabel:      canonical,
		CanonicalTypeID:     canonicalID,
		CanonicalDefinition: strings.TrimSpace(resp.CanonicalDefinition),
		Reasoning:           resp.Reasoning,
	}
	if d.CanonicalDefinition == "" {
		if canonicalID == ev.A.ID {
			d.CanonicalDefinition = ev.A.Definition
		} else {
			d.CanonicalDefinition = ev.B.Definition
		}
	}

	if resp.Verdict == string(ClassAbstraction) {
		subsumed := strings.ToLower(strings.TrimSpace(resp.SubsumedLabel))
		switch subsumed {
		case labelA:
			d.SubsumedTypeID = ev.A.ID
		case labelB:
			d.SubsumedTypeID = ev.B.ID
		default:
			return nil, fmt.Errorf("%w: subsumed label %q is neither %q nor %q", lifecycle.ErrArbiterMalformed, subsumed, labelA, labelB)
		}
		if d.SubsumedTypeID == canonicalID {
			return nil, fmt.Errorf("%w: subsumed label equals canonical label %q", lifecycle.ErrArbiterMalformed, canonical)
		}
	}

	return d, nil
}
