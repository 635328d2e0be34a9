package reconstruct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/skin"
)

func squareLayout() *skin.Layout {
	return &skin.Layout{
		Emitters: []grid.Point{{X: 0, Y: 0}, {X: 0, Y: 10}},
		Sensors:  []grid.Point{{X: 10, Y: 0}, {X: 10, Y: 10}},
	}
}

func ringLayout() *skin.Layout {
	return &skin.Layout{
		Emitters: []grid.Point{
			{X: 0, Y: 1}, {X: 0, Y: 3}, {X: 0, Y: 5}, {X: 0, Y: 7},
			{X: 0, Y: 9}, {X: 1, Y: 0}, {X: 5, Y: 0}, {X: 9, Y: 0},
		},
		Sensors: []grid.Point{
			{X: 10, Y: 1}, {X: 10, Y: 3}, {X: 10, Y: 5}, {X: 10, Y: 7},
			{X: 10, Y: 9}, {X: 1, Y: 10}, {X: 5, Y: 10}, {X: 9, Y: 10},
		},
	}
}

// simulate builds a session over layout that observes reference through the
// proportional forward model with ideal calibration.
func simulate(t *testing.T, layout *skin.Layout, reference *grid.Field) *Session {
	t.Helper()
	model := influence.NewDirectSampled(reference.Geometry(), influence.DefaultSampleDistance)
	sensor := skin.NewProportionalSensor(layout, reference, model)
	return NewSession(layout, model, sensor, skin.IdealCalibration{Layout: layout})
}

func uniformSession(t *testing.T, layout *skin.Layout, value float64) *Session {
	t.Helper()
	g := grid.MustGeometry(layout.Area(), 10, 10)
	return simulate(t, layout, grid.NewField(g, value))
}

func traversedOf(s *Session) []bool {
	return Traversed(s.Geometry(), s.Measurements())
}

func TestBackProjection_SquareScenario(t *testing.T) {
	s := uniformSession(t, squareLayout(), 0.5)
	e := NewBackProjection(s)
	require.True(t, e.Calculate())

	traversed := traversedOf(s)
	var seen int
	for idx, v := range s.Field().Values() {
		if !traversed[idx] {
			continue
		}
		seen++
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "cell %d not finite", idx)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Greater(t, seen, 0)
	// only the bottom ray crosses the middle of the bottom row
	assert.InDelta(t, 0.5, s.Field().At(5, 0), 1e-9)
}

func TestBackProjection_UniformClearField(t *testing.T) {
	s := uniformSession(t, ringLayout(), 1.0)
	require.True(t, NewBackProjection(s).Calculate())
	for idx, v := range s.Field().Values() {
		assert.InDelta(t, 1.0, v, 1e-9, "cell %d", idx)
	}
}

func TestBackProjection_WorkersMatchSequential(t *testing.T) {
	g := grid.MustGeometry(grid.Area{MaxX: 10, MaxY: 10}, 10, 10)
	ref := grid.NewField(g, 0.9)
	ref.Set(4, 4, 0.2)
	ref.Set(5, 4, 0.3)

	seq := simulate(t, ringLayout(), ref)
	require.True(t, NewBackProjection(seq).Calculate())

	par := simulate(t, ringLayout(), ref)
	par.Workers = 4
	require.True(t, NewBackProjection(par).Calculate())

	assert.InDeltaSlice(t, seq.Field().Values(), par.Field().Values(), 1e-12)
}

func TestBackProjection_UnknownValue(t *testing.T) {
	s := uniformSession(t, squareLayout(), 0.5)
	e := NewBackProjection(s)
	e.UnknownValue = -1
	require.True(t, e.Calculate())

	traversed := traversedOf(s)
	for idx, v := range s.Field().Values() {
		if !traversed[idx] {
			assert.Equal(t, -1.0, v)
		}
	}
}

func TestIterativeEngines_RecoverUniformField(t *testing.T) {
	tests := []struct {
		name   string
		engine func(*Session) Engine
		delta  float64
	}{
		{"repeated", func(s *Session) Engine { return NewRepeatedBackProjection(s) }, 0.05},
		{"distribute", func(s *Session) Engine { return NewDistributeBackProjection(s) }, 1e-6},
		{"logarithmic", func(s *Session) Engine { return NewLogBackProjection(s) }, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := uniformSession(t, ringLayout(), 0.5)
			e := tt.engine(s)
			require.True(t, e.Calculate())
			traversed := traversedOf(s)
			for idx, v := range s.Field().Values() {
				if traversed[idx] {
					assert.InDelta(t, 0.5, v, tt.delta, "cell %d", idx)
				}
			}
		})
	}
}

// brightSensor reports more light than the calibration expects, which pushes
// every residual towards saturating cells.
type brightSensor struct{ value float64 }

func (b brightSensor) Intensity(sensor, emitter int) float64 { return b.value }

func TestIterativeEngines_NeverExceedFullTransmission(t *testing.T) {
	layout := ringLayout()
	g := grid.MustGeometry(layout.Area(), 10, 10)
	model := influence.NewDirectSampled(g, influence.DefaultSampleDistance)

	tests := []struct {
		name    string
		engine  func(*Session) *iterative
		epsilon float64
	}{
		{"distribute", func(s *Session) *iterative { return &NewDistributeBackProjection(s).iterative }, DistributeTolerance},
		{"logarithmic", func(s *Session) *iterative { return &NewLogBackProjection(s).iterative }, LogDistributeTolerance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// mixes dark and over-bright rays so cells are pushed both ways
			s := NewSession(layout, model, brightSensor{value: 0.9}, skin.IdealCalibration{Layout: layout})
			e := tt.engine(s)
			rounds := 0
			e.OnRound = func(round int, values []float64) {
				rounds++
				for idx, v := range values {
					require.LessOrEqual(t, v, 1+tt.epsilon, "round %d cell %d", round, idx)
				}
			}
			require.True(t, e.Calculate())
			assert.Equal(t, DefaultRepetitions, rounds)
			for _, v := range s.Field().Values() {
				assert.LessOrEqual(t, v, 1+tt.epsilon)
				assert.GreaterOrEqual(t, v, 0.0)
			}
		})
	}
}

func TestDistribute_SaturatedCellsPassResidualOn(t *testing.T) {
	buf := []float64{0.9, 0.5}
	infl := []influence.Influence{{Index: 0, Weight: 1}, {Index: 1, Weight: 1}}
	acc := newSums(2)
	// a factor of 1.5 spread evenly would take cell 0 to 0.9*1.22 > 1
	distribute(buf, infl, 1.5, acc)

	f0 := acc.mean(0, 1)
	f1 := acc.mean(1, 1)
	assert.InDelta(t, 1/0.9, f0, 1e-12, "cell 0 capped at full transmission")
	assert.InDelta(t, 1.5, f0*f1, DistributeTolerance*2, "the rest of the factor moves to cell 1")
	assert.LessOrEqual(t, buf[1]*f1, 1.0)
}

func TestDistributeLog_SaturatedCellsPassResidualOn(t *testing.T) {
	buf := []float64{-0.1, -1}
	infl := []influence.Influence{{Index: 0, Weight: 1}, {Index: 1, Weight: 1}}
	acc := newSums(2)
	distributeLog(buf, infl, 0.6, acc)

	d0 := acc.mean(0, 0)
	d1 := acc.mean(1, 0)
	assert.InDelta(t, 0.1, d0, 1e-12)
	assert.InDelta(t, 0.5, d1, 1e-12)
}

func TestIterative_RejectsZeroRepetitions(t *testing.T) {
	s := uniformSession(t, squareLayout(), 0.5)
	e := NewRepeatedBackProjection(s)
	e.Repetitions = 0
	before := s.Field().Clone()
	assert.False(t, e.Calculate())
	assert.Equal(t, before.Values(), s.Field().Values())
}

type panickingSensor struct{}

func (panickingSensor) Intensity(sensor, emitter int) float64 { panic("sensor unplugged") }

func TestCalculate_RecoversPanics(t *testing.T) {
	layout := ringLayout()
	g := grid.MustGeometry(layout.Area(), 10, 10)
	model := influence.NewDirectSampled(g, influence.DefaultSampleDistance)

	for _, name := range Algorithms {
		t.Run(name, func(t *testing.T) {
			s := NewSession(layout, model, panickingSensor{}, skin.IdealCalibration{Layout: layout})
			e, err := New(name, s, DefaultOptions())
			require.NoError(t, err)
			assert.NotPanics(t, func() {
				assert.False(t, e.Calculate())
			})
			for _, v := range e.Field().Values() {
				assert.Equal(t, UnknownValue, v)
			}
		})
	}
}

func TestNew(t *testing.T) {
	s := uniformSession(t, squareLayout(), 0.5)
	for _, name := range Algorithms {
		e, err := New(name, s, DefaultOptions())
		require.NoError(t, err, name)
		assert.Same(t, s, e.Session())
	}
	e, err := New("linsys", s, Options{Mode: NonNegative})
	require.NoError(t, err)
	assert.Equal(t, "linsys-nonnegative", e.Name())

	_, err = New("magic", s, DefaultOptions())
	assert.Error(t, err)
}

func TestNew_RoundObservers(t *testing.T) {
	s := uniformSession(t, ringLayout(), 0.5)
	for _, name := range Algorithms {
		e, err := New(name, s, DefaultOptions())
		require.NoError(t, err, name)

		ro, ok := e.(RoundObserver)
		iterates := name != AlgorithmBackProjection && name != AlgorithmLinearSystem
		require.Equal(t, iterates, ok, name)
		if !ok {
			continue
		}
		rounds := 0
		ro.ObserveRounds(func(int, []float64) { rounds++ })
		require.True(t, e.Calculate(), name)
		assert.Equal(t, DefaultRepetitions, rounds, name)
	}
}

func TestSession_Measurements(t *testing.T) {
	layout := &skin.Layout{
		Emitters: []grid.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
		Sensors:  []grid.Point{{X: 10, Y: 10}, {X: 300, Y: 0}},
	}
	g := grid.MustGeometry(grid.Area{MaxX: 10, MaxY: 10}, 10, 10)
	s := simulate(t, layout, grid.NewField(g, 1))

	_, err := s.Measure(0, 1)
	assert.ErrorIs(t, err, ErrDegenerateRay)
	// 4/300 is below the sensitivity threshold
	_, err = s.Measure(1, 0)
	assert.ErrorIs(t, err, ErrBelowSensitivity)

	// the far sensor is out of range of both emitters
	ms := s.Measurements()
	require.Len(t, ms, 1)
	assert.Equal(t, 0, ms[0].Emitter)
	assert.Equal(t, 0, ms[0].Sensor)
	assert.InDelta(t, 1.0, ms[0].Factor(), 1e-12)
	assert.NotEmpty(t, ms[0].Influences)
}
