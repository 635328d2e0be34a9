package grid

import (
	"fmt"
	"math"
)

// Point is a position on the cartesian plane in grid units.
type Point struct {
	X float64
	Y float64
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Area is an axis-aligned rectangle.
type Area struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal extent of the area.
func (a Area) Width() float64 { return a.MaxX - a.MinX }

// Height returns the vertical extent of the area.
func (a Area) Height() float64 { return a.MaxY - a.MinY }

// Empty reports whether the area has no extent along either axis.
func (a Area) Empty() bool { return !(a.Width() > 0) || !(a.Height() > 0) }

// AreaOf returns the bounding box spanning every given point. An empty input
// returns the zero Area.
func AreaOf(sets ...[]Point) Area {
	a := Area{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	n := 0
	for _, pts := range sets {
		for _, p := range pts {
			a.MinX = math.Min(a.MinX, p.X)
			a.MinY = math.Min(a.MinY, p.Y)
			a.MaxX = math.Max(a.MaxX, p.X)
			a.MaxY = math.Max(a.MaxY, p.Y)
			n++
		}
	}
	if n == 0 {
		return Area{}
	}
	return a
}
