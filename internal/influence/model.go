// Package influence maps a ray onto the grid cells it "sees".
//
// A Model returns, for one ray, the weighted set of cells whose translucency
// contributes to the light measured along that ray. Two models are provided:
// DirectSampled marches along the direct path, WideFootprint spreads weight
// over a band around it. Cache memoises either.
package influence

import (
	"sort"

	"github.com/banshee-data/lightskin/internal/grid"
)

// Influence is the weight one cell contributes to a ray. Index is the flat
// cell index of the model's geometry.
type Influence struct {
	Index  int
	Weight float64
}

// Model maps rays to weighted cell lists.
//
// Implementations must return each cell index at most once and only
// non-negative weights. The returned slice is shared and must not be
// modified by the caller.
type Model interface {
	// Influences returns the cells influencing r. A degenerate ray yields an
	// empty result.
	Influences(r grid.Ray) []Influence
	// Geometry returns the grid the model resolves cells on.
	Geometry() grid.Geometry
	// Key identifies the model type and its parameters. Two models with equal
	// keys and geometries return equal influences for every ray.
	Key() string
}

// TotalWeight sums the weights of an influence list.
func TotalWeight(infl []Influence) float64 {
	var sum float64
	for _, in := range infl {
		sum += in.Weight
	}
	return sum
}

// accumulator collects weights per cell index and emits them once each, in
// index order.
type accumulator map[int]float64

func (a accumulator) add(index int, w float64) {
	a[index] += w
}

func (a accumulator) list() []Influence {
	out := make([]Influence, 0, len(a))
	for idx, w := range a {
		out = append(out, Influence{Index: idx, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
