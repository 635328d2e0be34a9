package influence

import (
	"fmt"

	"github.com/banshee-data/lightskin/internal/grid"
)

// DefaultSampleDistance is the step length, in grid units, DirectSampled
// marches along a ray.
const DefaultSampleDistance = 0.125

// DirectSampled weights cells by how much of the direct emitter-to-sensor
// path runs through them. The ray is sampled every SampleDistance units and
// each sample adds SampleDistance to the cell it lands in, so the total weight
// approximates the ray length. The remainder past the last full step is
// dropped rather than rounded.
type DirectSampled struct {
	geom           grid.Geometry
	SampleDistance float64
}

// NewDirectSampled returns a DirectSampled model on g. A non-positive step
// falls back to DefaultSampleDistance.
func NewDirectSampled(g grid.Geometry, step float64) *DirectSampled {
	if step <= 0 {
		step = DefaultSampleDistance
	}
	return &DirectSampled{geom: g, SampleDistance: step}
}

func (m *DirectSampled) Geometry() grid.Geometry { return m.geom }

func (m *DirectSampled) Key() string {
	return fmt.Sprintf("direct(step=%g)", m.SampleDistance)
}

func (m *DirectSampled) Influences(r grid.Ray) []Influence {
	length := r.Length()
	if length == 0 {
		return nil
	}
	dir := r.Direction()
	stepX := dir.X * m.SampleDistance
	stepY := dir.Y * m.SampleDistance
	steps := int(length / m.SampleDistance)

	acc := make(accumulator)
	for k := 0; k < steps; k++ {
		x := r.Start.X + float64(k)*stepX
		y := r.Start.Y + float64(k)*stepY
		i, j := m.geom.CellAt(x, y)
		acc.add(m.geom.Index(i, j), m.SampleDistance)
	}
	return acc.list()
}
