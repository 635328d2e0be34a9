package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned when a geometry would have no cells or no
// extent.
var ErrInvalidGeometry = errors.New("invalid grid geometry")

// Geometry describes a rectangular area split into CellsX x CellsY equally
// sized cells. It is an immutable value and safe to share between goroutines.
//
// Cells are addressed either by column/row (i, j) or by the flat index
// j*CellsX + i.
type Geometry struct {
	X0, Y0     float64
	CellWidth  float64
	CellHeight float64
	CellsX     int
	CellsY     int
}

// NewGeometry splits area into cellsX x cellsY cells.
func NewGeometry(area Area, cellsX, cellsY int) (Geometry, error) {
	if cellsX <= 0 || cellsY <= 0 {
		return Geometry{}, fmt.Errorf("%w: %dx%d cells", ErrInvalidGeometry, cellsX, cellsY)
	}
	if area.Empty() {
		return Geometry{}, fmt.Errorf("%w: area %.3gx%.3g has no extent", ErrInvalidGeometry, area.Width(), area.Height())
	}
	return Geometry{
		X0:         area.MinX,
		Y0:         area.MinY,
		CellWidth:  area.Width() / float64(cellsX),
		CellHeight: area.Height() / float64(cellsY),
		CellsX:     cellsX,
		CellsY:     cellsY,
	}, nil
}

// MustGeometry is NewGeometry for fixed, known-good inputs. It panics on error.
func MustGeometry(area Area, cellsX, cellsY int) Geometry {
	g, err := NewGeometry(area, cellsX, cellsY)
	if err != nil {
		panic(err)
	}
	return g
}

// Area returns the rectangle covered by the grid.
func (g Geometry) Area() Area {
	return Area{
		MinX: g.X0,
		MinY: g.Y0,
		MaxX: g.X0 + g.CellWidth*float64(g.CellsX),
		MaxY: g.Y0 + g.CellHeight*float64(g.CellsY),
	}
}

// Cells returns the total number of cells.
func (g Geometry) Cells() int { return g.CellsX * g.CellsY }

// ColumnAt returns the column containing x. Coordinates outside the grid map
// to the nearest border column.
func (g Geometry) ColumnAt(x float64) int {
	return clampInt(int((x-g.X0)/g.CellWidth), 0, g.CellsX-1)
}

// RowAt returns the row containing y, clamped like ColumnAt.
func (g Geometry) RowAt(y float64) int {
	return clampInt(int((y-g.Y0)/g.CellHeight), 0, g.CellsY-1)
}

// CellAt returns the cell containing (x, y). Border cells extend infinitely,
// so every input maps to some cell.
func (g Geometry) CellAt(x, y float64) (i, j int) {
	return g.ColumnAt(x), g.RowAt(y)
}

// CellAtStrict is CellAt without the border extension; ok is false when
// (x, y) lies outside the grid.
func (g Geometry) CellAtStrict(x, y float64) (i, j int, ok bool) {
	ti := int((x - g.X0) / g.CellWidth)
	tj := int((y - g.Y0) / g.CellHeight)
	i, j = g.CellAt(x, y)
	return i, j, i == ti && j == tj && x >= g.X0 && y >= g.Y0
}

// XAt returns the x coordinate of the centre of column i.
func (g Geometry) XAt(i int) float64 {
	return g.X0 + (float64(i)+0.5)*g.CellWidth
}

// YAt returns the y coordinate of the centre of row j.
func (g Geometry) YAt(j int) float64 {
	return g.Y0 + (float64(j)+0.5)*g.CellHeight
}

// CellCenter returns the centre point of cell (i, j).
func (g Geometry) CellCenter(i, j int) Point {
	return Point{X: g.XAt(i), Y: g.YAt(j)}
}

// CellCorner returns the lower-left corner of cell (i, j).
func (g Geometry) CellCorner(i, j int) Point {
	return Point{
		X: g.X0 + float64(i)*g.CellWidth,
		Y: g.Y0 + float64(j)*g.CellHeight,
	}
}

// Index returns the flat index of cell (i, j).
func (g Geometry) Index(i, j int) int { return j*g.CellsX + i }

// Coords is the inverse of Index.
func (g Geometry) Coords(index int) (i, j int) {
	j, i = index/g.CellsX, index%g.CellsX
	return i, j
}

// Distance returns the euclidean distance from p to the centre of the cell
// with the given flat index.
func (g Geometry) Distance(index int, p Point) float64 {
	i, j := g.Coords(index)
	return g.CellCenter(i, j).Dist(p)
}

func (g Geometry) String() string {
	a := g.Area()
	return fmt.Sprintf("%dx%d cells over [%g,%g]-[%g,%g]", g.CellsX, g.CellsY, a.MinX, a.MinY, a.MaxX, a.MaxY)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
