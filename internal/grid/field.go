package grid

import (
	"fmt"
	"math"
)

// Field is a translucency map: each cell holds the fraction of light that
// passes through it, nominally in [0, 1].
type Field struct {
	*Map[float64]
}

// NewField returns a field over g filled with fill.
func NewField(g Geometry, fill float64) *Field {
	return &Field{Map: NewMap(g, fill)}
}

// FieldFromColumns builds a field whose cell (i, j) is columns[i][j]. The area
// is split into len(columns) x len(columns[0]) cells.
func FieldFromColumns(area Area, columns [][]float64) (*Field, error) {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, fmt.Errorf("%w: empty value grid", ErrInvalidGeometry)
	}
	g, err := NewGeometry(area, len(columns), len(columns[0]))
	if err != nil {
		return nil, err
	}
	f := NewField(g, 0)
	for i, col := range columns {
		if len(col) != g.CellsY {
			return nil, fmt.Errorf("%w: column %d has %d values, want %d", ErrInvalidGeometry, i, len(col), g.CellsY)
		}
		for j, v := range col {
			f.Set(i, j, v)
		}
	}
	return f, nil
}

// MeasureAt samples the field at (x, y). Coordinates are clamped to the grid
// and the value is clamped to [0, 1].
func (f *Field) MeasureAt(x, y float64) float64 {
	i, j := f.Geometry().CellAt(x, y)
	return clamp01(f.At(i, j))
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	return &Field{Map: f.Map.Clone()}
}

// Columns returns the values as columns[i][j], the layout FieldFromColumns
// accepts.
func (f *Field) Columns() [][]float64 {
	g := f.Geometry()
	out := make([][]float64, g.CellsX)
	for i := range out {
		out[i] = make([]float64, g.CellsY)
		for j := range out[i] {
			out[i][j] = f.At(i, j)
		}
	}
	return out
}

// Range returns the smallest and largest finite values in the field. Both are
// NaN when no cell is finite.
func (f *Field) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
