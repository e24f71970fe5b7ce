// Package profile turns instance role edges into the sparse
// (role, counterpart-type) feature representations the structural detectors
// run on. All functions are pure reads over a snapshot: for a fixed instance
// set they are deterministic and idempotent.
package profile

import (
	"sort"

	"github.com/OFFIS-RIT/taxo/pkg/ontology"
)

// Matrix is a dense feature matrix over an axis set scoped to one instance
// set. Row i holds the axis counts of InstanceIDs[i], scaled by the
// instance's temporal weight.
type Matrix struct {
	Axes        []ontology.Axis
	InstanceIDs []string
	Rows        [][]float64
}

// Build computes the axis set observed on at least one instance in the set
// and the per-instance count matrix over it. The axis order is sorted so the
// output is deterministic for a fixed snapshot.
func Build(instances []ontology.Instance) *Matrix {
	axisIndex := make(map[ontology.Axis]int)
	var axes []ontology.Axis
	for i := range instances {
		for axis := range instances[i].Profile() {
			if _, seen := axisIndex[axis]; !seen {
				axisIndex[axis] = 0
				axes = append(axes, axis)
			}
		}
	}
	sort.Slice(axes, func(i, j int) bool {
		if axes[i].Role != axes[j].Role {
			return axes[i].Role < axes[j].Role
		}
		return axes[i].CounterpartTypeID < axes[j].CounterpartTypeID
	})
	for i, axis := range axes {
		axisIndex[axis] = i
	}

	m := &Matrix{
		Axes:        axes,
		InstanceIDs: make([]string, len(instances)),
		Rows:        make([][]float64, len(instances)),
	}
	for i := range instances {
		row := make([]float64, len(axes))
		weight := instances[i].Weight
		if weight <= 0 {
			weight = 1
		}
		for axis, count := range instances[i].Profile() {
			row[axisIndex[axis]] = float64(count) * weight
		}
		m.InstanceIDs[i] = instances[i].ID
		m.Rows[i] = row
	}
	return m
}

// N returns the number of instances (rows).
func (m *Matrix) N() int {
	return len(m.Rows)
}

// DistinguishingAxes returns the axes whose mean presence differs most
// between the member rows and the rest of the matrix, strongest first, at
// most limit entries. Used to explain sub-clusters in evidence bundles.
func (m *Matrix) DistinguishingAxes(members []int, limit int) []ontology.Axis {
	if len(members) == 0 || len(members) == m.N() || len(m.Axes) == 0 {
		return nil
	}
	inMember := make([]bool, m.N())
	for _, idx := range members {
		inMember[idx] = true
	}

	type scored struct {
		axis ontology.Axis
		gap  float64
	}
	scores := make([]scored, 0, len(m.Axes))
	for a := range m.Axes {
		var inSum, outSum float64
		for i, row := range m.Rows {
			presence := 0.0
			if row[a] > 0 {
				presence = 1.0
			}
			if inMember[i] {
				inSum += presence
			} else {
				outSum += presence
			}
		}
		inMean := inSum / float64(len(members))
		outMean := outSum / float64(m.N()-len(members))
		gap := inMean - outMean
		if gap < 0 {
			gap = -gap
		}
		scores = append(scores, scored{axis: m.Axes[a], gap: gap})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].gap > scores[j].gap })

	if limit > len(scores) {
		limit = len(scores)
	}
	axes := make([]ontology.Axis, 0, limit)
	for _, s := range scores[:limit] {
		if s.gap == 0 {
			break
		}
		axes = append(axes, s.axis)
	}
	return axes
}
