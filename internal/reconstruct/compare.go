package reconstruct

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lightskin/internal/grid"
)

// Comparison scores a reconstruction against the field it should recover.
type Comparison struct {
	// Cells is the number of cells compared.
	Cells int
	// Correlation is the Pearson correlation of the two fields. It is NaN
	// when either is constant over the compared cells.
	Correlation float64
	// NormalizedError is |recovered - reference| / |reference|.
	NormalizedError float64
	MeanAbsError    float64
	MaxAbsError     float64
}

// Compare scores recovered against reference, sampling reference at the
// centre of each recovered cell. Only cells with mask[i] set are compared;
// a nil mask compares every cell.
func Compare(reference, recovered *grid.Field, mask []bool) Comparison {
	g := recovered.Geometry()
	var want, got []float64
	for idx := 0; idx < g.Cells(); idx++ {
		if mask != nil && !mask[idx] {
			continue
		}
		i, j := g.Coords(idx)
		c := g.CellCenter(i, j)
		ri, rj := reference.Geometry().CellAt(c.X, c.Y)
		want = append(want, reference.At(ri, rj))
		got = append(got, recovered.AtIndex(idx))
	}
	cmp := Comparison{Cells: len(want)}
	if len(want) == 0 {
		cmp.Correlation = math.NaN()
		cmp.NormalizedError = math.NaN()
		return cmp
	}

	cmp.Correlation = stat.Correlation(want, got, nil)
	cmp.NormalizedError = floats.Distance(got, want, 2) / floats.Norm(want, 2)
	for i := range want {
		d := math.Abs(got[i] - want[i])
		cmp.MeanAbsError += d
		cmp.MaxAbsError = math.Max(cmp.MaxAbsError, d)
	}
	cmp.MeanAbsError /= float64(len(want))
	return cmp
}
