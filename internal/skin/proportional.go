package skin

import (
	"math"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
)

// ProportionalSensor simulates sensor readings: light falls off inversely
// with distance and is attenuated by every cell of a reference field it
// passes through.
type ProportionalSensor struct {
	layout    *Layout
	reference *grid.Field
	model     influence.Model
}

// NewProportionalSensor simulates layout over reference. The influence model
// is rebound to the reference field's geometry.
func NewProportionalSensor(layout *Layout, reference *grid.Field, model influence.Model) *ProportionalSensor {
	return &ProportionalSensor{
		layout:    layout,
		reference: reference,
		model:     influence.Rebind(model, reference.Geometry()),
	}
}

// Reference returns the field being simulated.
func (s *ProportionalSensor) Reference() *grid.Field { return s.reference }

// MeasureAt returns the light emitter would deliver to (x, y).
func (s *ProportionalSensor) MeasureAt(x, y float64, emitter int) float64 {
	ray := grid.NewRay(s.layout.Emitters[emitter], grid.Point{X: x, Y: y})
	transmission := 1.0
	for _, in := range s.model.Influences(ray) {
		transmission *= math.Pow(s.reference.AtIndex(in.Index), in.Weight)
	}
	return clamp01(Falloff(ray.Length()) * transmission)
}

func (s *ProportionalSensor) Intensity(sensor, emitter int) float64 {
	p := s.layout.Sensors[sensor]
	return s.MeasureAt(p.X, p.Y, emitter)
}
