package profile

import (
	"math"
	"sort"

	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

// Signature is a type's aggregate structural signature: total axis weight
// over all of its instances.
type Signature map[ontology.Axis]float64

// AggregateSignature sums the weighted axis counts of an instance set.
func AggregateSignature(instances []ontology.Instance) Signature {
	sig := make(Signature)
	for i := range instances {
		weight := instances[i].Weight
		if weight <= 0 {
			weight = 1
		}
		for axis, count := range instances[i].Profile() {
			sig[axis] += float64(count) * weight
		}
	}
	return sig
}

// Axes returns the signature's axis set in deterministic order.
func (s Signature) Axes() []ontology.Axis {
	axes := make([]ontology.Axis, 0, len(s))
	for axis := range s {
		axes = append(axes, axis)
	}
	sort.Slice(axes, func(i, j int) bool {
		if axes[i].Role != axes[j].Role {
			return axes[i].Role < axes[j].Role
		}
		return axes[i].CounterpartTypeID < axes[j].CounterpartTypeID
	})
	return axes
}

// SharedAxes returns the axes present in both signatures.
func SharedAxes(a, b Signature) []ontology.Axis {
	shared := make(Signature)
	for axis, w := range a {
		if _, ok := b[axis]; ok {
			shared[axis] = w
		}
	}
	return shared.Axes()
}

// DistinctAxes returns the axes of a absent from b.
func DistinctAxes(a, b Signature) []ontology.Axis {
	distinct := make(Signature)
	for axis, w := range a {
		if _, ok := b[axis]; !ok {
			distinct[axis] = w
		}
	}
	return distinct.Axes()
}

// TFIDF weights a set of per-type signatures against each other: axis counts
// are term frequencies, and axes shared by many types are damped by an
// inverse document frequency over the signature set. Returns one dense
// vector per type id, all over the same axis order.
func TFIDF(signatures map[string]Signature) map[string][]float64 {
	if len(signatures) == 0 {
		return nil
	}

	df := make(map[ontology.Axis]int)
	union := make(Signature)
	for _, sig := range signatures {
		for axis := range sig {
			df[axis]++
			union[axis] = 1
		}
	}
	axes := union.Axes()

	n := float64(len(signatures))
	idf := make([]float64, len(axes))
	for i, axis := range axes {
		idf[i] = math.Log(1 + n/float64(df[axis]))
	}

	vectors := make(map[string][]float64, len(signatures))
	for id, sig := range signatures {
		var total float64
		for _, w := range sig {
			total += w
		}
		vec := make([]float64, len(axes))
		if total > 0 {
			for i, axis := range axes {
				vec[i] = (sig[axis] / total) * idf[i]
			}
		}
		vectors[id] = vec
	}
	return vectors
}
