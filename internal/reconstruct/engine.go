// Package reconstruct turns emitter/sensor measurements into a translucency
// field.
//
// Every strategy implements Engine. Engines read measurements through a
// Session and write their result into the session's field; a failed
// Calculate leaves the field as it was.
package reconstruct

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/monitoring"
)

const (
	// UnknownValue is assigned to cells no measurement observes.
	UnknownValue = 1.0
	// DefaultRepetitions is the number of rounds iterative engines run.
	DefaultRepetitions = 20
)

// Engine is a reconstruction strategy bound to a session.
type Engine interface {
	Name() string
	// Calculate recomputes the field from the current measurements and
	// reports success. It never panics.
	Calculate() bool
	Field() *grid.Field
	Session() *Session
}

// RoundObserver is implemented by engines that refine the field over
// several rounds.
type RoundObserver interface {
	ObserveRounds(f RoundFunc)
}

// Algorithm names accepted by New.
const (
	AlgorithmBackProjection = "backprojection"
	AlgorithmRepeated       = "repeated"
	AlgorithmDistribute     = "distribute"
	AlgorithmLogarithmic    = "logarithmic"
	AlgorithmLinearSystem   = "linsys"
)

// Algorithms lists every algorithm name, simplest first.
var Algorithms = []string{
	AlgorithmBackProjection,
	AlgorithmRepeated,
	AlgorithmDistribute,
	AlgorithmLogarithmic,
	AlgorithmLinearSystem,
}

// Options tunes the engines built by New. Each engine reads what applies.
type Options struct {
	Repetitions  int
	UnknownValue float64
	Mode         SolverMode
	Solver       SolverOptions
}

func DefaultOptions() Options {
	return Options{
		Repetitions:  DefaultRepetitions,
		UnknownValue: UnknownValue,
		Mode:         BoundedLeastSquares,
		Solver:       DefaultSolverOptions(),
	}
}

// New builds the named engine on s.
func New(algorithm string, s *Session, o Options) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case AlgorithmBackProjection:
		e := NewBackProjection(s)
		e.UnknownValue = o.UnknownValue
		return e, nil
	case AlgorithmRepeated:
		e := NewRepeatedBackProjection(s)
		e.Repetitions, e.UnknownValue = o.Repetitions, o.UnknownValue
		return e, nil
	case AlgorithmDistribute:
		e := NewDistributeBackProjection(s)
		e.Repetitions, e.UnknownValue = o.Repetitions, o.UnknownValue
		return e, nil
	case AlgorithmLogarithmic:
		e := NewLogBackProjection(s)
		e.Repetitions = o.Repetitions
		return e, nil
	case AlgorithmLinearSystem:
		e := NewLinearSystem(s, o.Mode)
		e.Solver = o.Solver
		return e, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q: expected one of %s", algorithm, strings.Join(Algorithms, ", "))
	}
}

type base struct {
	session *Session
}

func (b *base) Session() *Session  { return b.session }
func (b *base) Field() *grid.Field { return b.session.Field() }
func (b *base) cells() int         { return b.session.Geometry().Cells() }
func (b *base) workers() int       { return b.session.Workers }

// run executes compute, converting a returned error or a panic into a false
// result.
func run(name string, compute func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			monitoring.Logf("%s: recovered from panic: %v", name, p)
			ok = false
		}
	}()
	if err := compute(); err != nil {
		monitoring.Logf("%s: %v", name, err)
		return false
	}
	return true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
