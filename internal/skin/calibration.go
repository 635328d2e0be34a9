package skin

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// IdealCalibration expects exactly the unobstructed falloff a
// ProportionalSensor produces. All instances are equivalent.
type IdealCalibration struct {
	Layout *Layout
}

func (c IdealCalibration) ExpectedIntensity(sensor, emitter int) float64 {
	return Falloff(c.Layout.Ray(sensor, emitter).Length())
}

func (IdealCalibration) Key() uint64 {
	h := fnv.New64a()
	h.Write([]byte("ideal-proportional"))
	return h.Sum64()
}

// SnapshotCalibration records the readings of a ForwardSensor as the
// expected values. It is safe for concurrent use.
type SnapshotCalibration struct {
	layout *Layout
	source ForwardSensor

	mu         sync.RWMutex
	values     [][]float64 // [emitter][sensor]
	calibrated bool
	key        uint64
}

// NewSnapshotCalibration returns an uncalibrated snapshot of source.
func NewSnapshotCalibration(layout *Layout, source ForwardSensor) *SnapshotCalibration {
	return &SnapshotCalibration{layout: layout, source: source}
}

// Calibrate takes a fresh snapshot of the source, replacing any earlier one.
func (c *SnapshotCalibration) Calibrate() {
	values := make([][]float64, len(c.layout.Emitters))
	for e := range values {
		values[e] = make([]float64, len(c.layout.Sensors))
		for s := range values[e] {
			values[e][s] = c.source.Intensity(s, e)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(values)
}

// EnsureCalibrated snapshots the source only if no snapshot exists yet. It
// reports whether a snapshot was taken.
func (c *SnapshotCalibration) EnsureCalibrated() bool {
	c.mu.RLock()
	done := c.calibrated
	c.mu.RUnlock()
	if done {
		return false
	}
	c.Calibrate()
	return true
}

func (c *SnapshotCalibration) IsCalibrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calibrated
}

// Values returns a copy of the snapshot indexed [emitter][sensor], or nil
// when uncalibrated.
func (c *SnapshotCalibration) Values() [][]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.calibrated {
		return nil
	}
	return copyMatrix(c.values)
}

// Restore installs previously persisted values indexed [emitter][sensor].
func (c *SnapshotCalibration) Restore(values [][]float64) error {
	if len(values) != len(c.layout.Emitters) {
		return fmt.Errorf("calibration has %d emitters, layout has %d", len(values), len(c.layout.Emitters))
	}
	for e, row := range values {
		if len(row) != len(c.layout.Sensors) {
			return fmt.Errorf("calibration emitter %d has %d sensors, layout has %d", e, len(row), len(c.layout.Sensors))
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(copyMatrix(values))
	return nil
}

// ExpectedIntensity returns 0 until the calibration has been taken, which
// excludes every measurement from reconstruction.
func (c *SnapshotCalibration) ExpectedIntensity(sensor, emitter int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.calibrated {
		return 0
	}
	return c.values[emitter][sensor]
}

func (c *SnapshotCalibration) Key() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

func (c *SnapshotCalibration) set(values [][]float64) {
	c.values = values
	c.calibrated = true
	c.key = hashMatrix(values)
}

func hashMatrix(m [][]float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, row := range m {
		for _, v := range row {
			bits := math.Float64bits(v)
			for i := range buf {
				buf[i] = byte(bits >> (8 * i))
			}
			h.Write(buf[:])
		}
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
