package grid

import "fmt"

// Map is a dense 2D array of values laid out over a Geometry. Values are
// stored by flat index (see Geometry.Index).
type Map[T any] struct {
	geom  Geometry
	cells []T
}

// NewMap returns a map over g with every cell set to fill.
func NewMap[T any](g Geometry, fill T) *Map[T] {
	m := &Map[T]{geom: g, cells: make([]T, g.Cells())}
	m.Fill(fill)
	return m
}

// Geometry returns the geometry the map is laid out on.
func (m *Map[T]) Geometry() Geometry { return m.geom }

// Len returns the number of cells.
func (m *Map[T]) Len() int { return len(m.cells) }

// At returns the value of cell (i, j).
func (m *Map[T]) At(i, j int) T { return m.cells[m.geom.Index(i, j)] }

// Set stores v in cell (i, j).
func (m *Map[T]) Set(i, j int, v T) { m.cells[m.geom.Index(i, j)] = v }

// AtIndex returns the value of the cell with the given flat index.
func (m *Map[T]) AtIndex(index int) T { return m.cells[index] }

// SetIndex stores v in the cell with the given flat index.
func (m *Map[T]) SetIndex(index int, v T) { m.cells[index] = v }

// Fill sets every cell to v.
func (m *Map[T]) Fill(v T) {
	for i := range m.cells {
		m.cells[i] = v
	}
}

// Values exposes the backing slice, indexed by flat index. Callers that
// mutate it mutate the map.
func (m *Map[T]) Values() []T { return m.cells }

// Clone returns a deep copy of the map.
func (m *Map[T]) Clone() *Map[T] {
	c := &Map[T]{geom: m.geom, cells: make([]T, len(m.cells))}
	copy(c.cells, m.cells)
	return c
}

// CopyFrom overwrites m with the values of src. Both maps must share the same
// geometry.
func (m *Map[T]) CopyFrom(src *Map[T]) error {
	if src.geom != m.geom {
		return fmt.Errorf("%w: copy between %v and %v", ErrInvalidGeometry, src.geom, m.geom)
	}
	copy(m.cells, src.cells)
	return nil
}
