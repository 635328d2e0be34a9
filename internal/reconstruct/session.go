package reconstruct

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/monitoring"
	"github.com/banshee-data/lightskin/internal/skin"
)

// MinSensitivity is the default expected intensity at or below which a
// measurement is too weak to divide by.
const MinSensitivity = 0.02

var (
	// ErrDegenerateRay is returned for emitter/sensor pairs at the same
	// position.
	ErrDegenerateRay = errors.New("degenerate ray")
	// ErrBelowSensitivity marks measurements filtered out because their
	// expected intensity does not exceed the session's MinSensitivity.
	ErrBelowSensitivity = errors.New("expected intensity below sensitivity")
)

// Measurement is one emitter/sensor observation together with the cells
// its ray passes.
type Measurement struct {
	Emitter, Sensor int
	Ray             grid.Ray
	Measured        float64
	Expected        float64
	Influences      []influence.Influence
}

// Factor is the fraction of the expected light that arrived.
func (m *Measurement) Factor() float64 { return m.Measured / m.Expected }

// Session binds the inputs of a reconstruction to the field it produces.
// A session belongs to one engine and is not safe for concurrent use.
type Session struct {
	Layout      *skin.Layout
	Model       influence.Model
	Sensor      skin.ForwardSensor
	Calibration skin.Calibration

	MinSensitivity float64
	// Workers is the number of goroutines accumulating back-projections.
	Workers int

	field *grid.Field
}

// NewSession prepares a reconstruction over the model's geometry. The field
// starts at UnknownValue everywhere.
func NewSession(layout *skin.Layout, model influence.Model, sensor skin.ForwardSensor, calibration skin.Calibration) *Session {
	return &Session{
		Layout:         layout,
		Model:          model,
		Sensor:         sensor,
		Calibration:    calibration,
		MinSensitivity: MinSensitivity,
		Workers:        1,
		field:          grid.NewField(model.Geometry(), UnknownValue),
	}
}

func (s *Session) Geometry() grid.Geometry { return s.Model.Geometry() }

// Field returns the current reconstruction.
func (s *Session) Field() *grid.Field { return s.field }

// Measure reads one emitter/sensor pair.
func (s *Session) Measure(sensor, emitter int) (Measurement, error) {
	ray := s.Layout.Ray(sensor, emitter)
	if ray.IsDegenerate() {
		return Measurement{}, fmt.Errorf("%w: emitter %d and sensor %d at %v", ErrDegenerateRay, emitter, sensor, ray.Start)
	}
	expected := s.Calibration.ExpectedIntensity(sensor, emitter)
	if !(expected > s.MinSensitivity) {
		return Measurement{}, ErrBelowSensitivity
	}
	return Measurement{
		Emitter:    emitter,
		Sensor:     sensor,
		Ray:        ray,
		Measured:   s.Sensor.Intensity(sensor, emitter),
		Expected:   expected,
		Influences: s.Model.Influences(ray),
	}, nil
}

// Measurements collects every usable measurement, emitter by emitter.
func (s *Session) Measurements() []Measurement {
	out := make([]Measurement, 0, s.Layout.Pairs())
	var degenerate int
	for e := range s.Layout.Emitters {
		for sn := range s.Layout.Sensors {
			m, err := s.Measure(sn, e)
			switch {
			case err == nil:
				out = append(out, m)
			case errors.Is(err, ErrDegenerateRay):
				degenerate++
			}
		}
	}
	if degenerate > 0 {
		monitoring.Debugf("skipped %d measurements with degenerate rays", degenerate)
	}
	return out
}

// publish replaces the field values.
func (s *Session) publish(values []float64) {
	copy(s.field.Values(), values)
}

// Traversed marks the cells of g that at least one measurement observes.
func Traversed(g grid.Geometry, ms []Measurement) []bool {
	out := make([]bool, g.Cells())
	for i := range ms {
		for _, in := range ms[i].Influences {
			if in.Weight > 0 {
				out[in.Index] = true
			}
		}
	}
	return out
}
