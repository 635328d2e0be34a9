package influence

import (
	"fmt"
	"math"

	"github.com/banshee-data/lightskin/internal/grid"
)

// Defaults for WideFootprint.
const (
	DefaultFootprintDistance = 1.0
	DefaultFootprintFalloff  = 100.0
)

// WideFootprint models light spreading around the direct path. Every cell
// whose centre lies within MaxDistance of the ray line, and whose projection
// onto the line falls strictly between emitter and sensor, receives
//
//	1 / (1 + Falloff*(dx²+dy²)^1.5) / length
//
// where (dx, dy) is the offset from the cell centre to the line. Dividing by
// the length keeps the total influence of a ray independent of how long it is.
type WideFootprint struct {
	geom        grid.Geometry
	MaxDistance float64
	Falloff     float64
}

// NewWideFootprint returns a footprint model on g. Non-positive parameters
// fall back to their defaults.
func NewWideFootprint(g grid.Geometry, maxDistance, falloff float64) *WideFootprint {
	if maxDistance <= 0 {
		maxDistance = DefaultFootprintDistance
	}
	if falloff <= 0 {
		falloff = DefaultFootprintFalloff
	}
	return &WideFootprint{geom: g, MaxDistance: maxDistance, Falloff: falloff}
}

func (m *WideFootprint) Geometry() grid.Geometry { return m.geom }

func (m *WideFootprint) Key() string {
	return fmt.Sprintf("wide(d=%g,k=%g)", m.MaxDistance, m.Falloff)
}

func (m *WideFootprint) Influences(r grid.Ray) []Influence {
	length := r.Length()
	if length == 0 {
		return nil
	}
	g := m.geom
	d := m.MaxDistance
	dx, dy, c := r.DX(), r.DY(), r.C()

	startX, endX := r.Start.X-d, r.End.X+d
	if dx < 0 {
		startX, endX = r.Start.X+d, r.End.X-d
	}
	startI, endI := g.ColumnAt(startX), g.ColumnAt(endX)
	iDir := stepDir(startI, endI)

	area := g.Area()
	acc := make(accumulator)
	for i := startI; ; i += iDir {
		x := g.XAt(i)

		lowY, highY := area.MinY, area.MaxY
		if math.Abs(dx) > 0 {
			// y where the perpendicular distance to the line is +-d
			lowY = clampFloat((d*length-c-dy*x)/-dx, area.MinY, area.MaxY)
			highY = clampFloat((-d*length-c-dy*x)/-dx, area.MinY, area.MaxY)
		}
		startJ, endJ := g.RowAt(lowY), g.RowAt(highY)
		jDir := stepDir(startJ, endJ)

		for j := startJ; ; j += jDir {
			centre := g.CellCenter(i, j)
			if w, ok := m.weight(r, centre, length); ok {
				acc.add(g.Index(i, j), w)
			}
			if j == endJ {
				break
			}
		}
		if i == endI {
			break
		}
	}
	return acc.list()
}

// weight returns the influence of the cell centred at p, or ok=false when the
// cell lies outside the footprint.
func (m *WideFootprint) weight(r grid.Ray, p grid.Point, length float64) (float64, bool) {
	cp := r.ClosestPointOnLine(p)
	offX := math.Abs(cp.X - p.X)
	offY := math.Abs(cp.Y - p.Y)
	if math.Hypot(offX, offY) > m.MaxDistance {
		return 0, false
	}
	// limit the footprint to the segment between emitter and sensor
	f := r.FractionAlong(cp)
	if !(f > 0 && f < 1) {
		return 0, false
	}
	return 1 / (1 + m.Falloff*math.Pow(offX*offX+offY*offY, 1.5)) / length, true
}

func stepDir(from, to int) int {
	if to < from {
		return -1
	}
	return 1
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
