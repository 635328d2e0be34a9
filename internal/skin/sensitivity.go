package skin

import (
	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
)

// DefaultMinSensorDistance excludes cells this close to an emitter or sensor
// from the sensitivity map, where every ray of that device converges.
const DefaultMinSensorDistance = 1.0

// NoSelection selects every emitter or sensor.
const NoSelection = -1

// SensitivityOptions restricts a sensitivity analysis.
type SensitivityOptions struct {
	MinSensorDistance float64
	Emitter           int // NoSelection for all emitters
	Sensor            int // NoSelection for all sensors
}

// DefaultSensitivityOptions covers every ray.
func DefaultSensitivityOptions() SensitivityOptions {
	return SensitivityOptions{
		MinSensorDistance: DefaultMinSensorDistance,
		Emitter:           NoSelection,
		Sensor:            NoSelection,
	}
}

// SensitivityMap reports, per cell, how strongly the layout's rays observe it
// relative to the best covered cell: 1 for the best, 0 for cells no ray sees.
func SensitivityMap(layout *Layout, model influence.Model, opts SensitivityOptions) *grid.Field {
	g := model.Geometry()
	out := grid.NewField(g, 0)
	var peak float64
	for e, ep := range layout.Emitters {
		if opts.Emitter >= 0 && opts.Emitter != e {
			continue
		}
		for s, sp := range layout.Sensors {
			if opts.Sensor >= 0 && opts.Sensor != s {
				continue
			}
			for _, in := range model.Influences(layout.Ray(s, e)) {
				if g.Distance(in.Index, ep) <= opts.MinSensorDistance ||
					g.Distance(in.Index, sp) <= opts.MinSensorDistance {
					continue
				}
				v := out.AtIndex(in.Index) + in.Weight
				out.SetIndex(in.Index, v)
				if v > peak {
					peak = v
				}
			}
		}
	}
	if peak > 0 {
		values := out.Values()
		for i := range values {
			values[i] /= peak
		}
	}
	return out
}
