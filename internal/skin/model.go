package skin

import "math"

// ForwardSensor provides the light measured at a sensor while a given emitter
// is lit, as a fraction in [0, 1].
type ForwardSensor interface {
	Intensity(sensor, emitter int) float64
}

// Calibration provides the reading each sensor is expected to show for each
// emitter when nothing attenuates the light.
type Calibration interface {
	ExpectedIntensity(sensor, emitter int) float64
	// Key changes whenever the expected values change. Reconstructions that
	// cache per-calibration state compare keys to detect a recalibration.
	Key() uint64
}

// Falloff is the unobstructed intensity at distance d from an emitter under
// the inverse-proportional light model shared by the simulated sensor and the
// ideal calibration.
func Falloff(d float64) float64 {
	return clamp01(4 / math.Max(d, 0.1))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
