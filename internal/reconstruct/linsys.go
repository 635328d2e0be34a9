package reconstruct

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lightskin/internal/monitoring"
)

// SolverMode selects the formulation LinearSystem solves.
type SolverMode int

const (
	// BoundedLeastSquares solves for log-transmission x <= 0.
	BoundedLeastSquares SolverMode = iota
	// NonNegative solves the sign-flipped system for -x >= 0 by NNLS.
	NonNegative
)

func (m SolverMode) String() string {
	switch m {
	case BoundedLeastSquares:
		return "bounded"
	case NonNegative:
		return "nonnegative"
	default:
		return fmt.Sprintf("SolverMode(%d)", int(m))
	}
}

// ParseSolverMode accepts the names returned by SolverMode.String.
func ParseSolverMode(s string) (SolverMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bounded", "":
		return BoundedLeastSquares, nil
	case "nonnegative", "nnls":
		return NonNegative, nil
	default:
		return 0, fmt.Errorf("unknown solver mode %q: expected bounded or nonnegative", s)
	}
}

// LinearSystem reconstructs the whole field at once: every measurement is
// one linear equation in the cells' log-transmissions,
//
//	Σ weight_i · log t_i = log(measured / expected)
//
// solved in the least-squares sense with t_i <= 1. The matrix is only rebuilt
// when the set of rays or the influence model changes; otherwise each
// Calculate refreshes the right-hand side and warm-starts from the previous
// solution.
type LinearSystem struct {
	base
	Mode   SolverMode
	Solver SolverOptions

	hash      uint64
	matrix    *CSR
	dense     *mat.Dense
	traversed []bool
	solution  []float64
	residual  float64
	iters     int
	rebuilds  int
}

func NewLinearSystem(s *Session, mode SolverMode) *LinearSystem {
	return &LinearSystem{
		base:   base{session: s},
		Mode:   mode,
		Solver: DefaultSolverOptions(),
	}
}

func (l *LinearSystem) Name() string {
	return AlgorithmLinearSystem + "-" + l.Mode.String()
}

func (l *LinearSystem) Calculate() bool {
	return run(l.Name(), l.compute)
}

// Rebuilds returns how many times the matrix has been assembled.
func (l *LinearSystem) Rebuilds() int { return l.rebuilds }

// Traversed marks the cells at least one equation involves. The solution of
// every other cell is unconstrained and stays at full transmission.
func (l *LinearSystem) Traversed() []bool { return l.traversed }

// Residual returns |A·x - b| of the last successful solve.
func (l *LinearSystem) Residual() float64 { return l.residual }

// Iterations returns the iterations the last bounded solve took.
func (l *LinearSystem) Iterations() int { return l.iters }

func (l *LinearSystem) compute() error {
	ms := l.session.Measurements()
	n := l.cells()

	if h := l.structuralHash(ms); h != l.hash || l.matrix == nil {
		l.matrix = NewCSR(n)
		for i := range ms {
			l.matrix.AppendRow(ms[i].Influences)
		}
		l.dense = nil
		l.solution = nil
		l.traversed = Traversed(l.session.Geometry(), ms)
		l.hash = h
		l.rebuilds++
		monitoring.Debugf("%s: assembled %d×%d system with %d entries", l.Name(), len(ms), n, l.matrix.NNZ())
	}

	b := make([]float64, len(ms))
	for i := range ms {
		v := math.Min(0, math.Log(math.Max(MinTransmission, ms[i].Measured)/ms[i].Expected))
		if l.Mode == NonNegative {
			v = -v
		}
		b[i] = v
	}

	var x []float64
	var err error
	switch l.Mode {
	case BoundedLeastSquares:
		x, l.iters, err = SolveBoundedLeastSquares(l.matrix, b, l.solution, l.Solver)
	case NonNegative:
		if l.dense == nil {
			l.dense = l.matrix.ToDense()
		}
		x, err = SolveNNLS(l.dense, b, l.Solver)
	default:
		err = fmt.Errorf("unsupported solver mode %v", l.Mode)
	}
	if err != nil {
		return err
	}

	ax := make([]float64, len(b))
	l.matrix.MulVecTo(ax, x)
	l.residual = floats.Distance(ax, b, 2)
	l.solution = x

	out := make([]float64, n)
	for i, v := range x {
		if l.Mode == NonNegative {
			v = -v
		}
		out[i] = math.Exp(v)
	}
	l.session.publish(out)
	return nil
}

// structuralHash identifies everything the matrix depends on: the rays in
// order, the geometry, the influence model and the mode.
func (l *LinearSystem) structuralHash(ms []Measurement) uint64 {
	h := fnv.New64a()
	putFloat := func(v float64) {
		binary.Write(h, binary.LittleEndian, math.Float64bits(v))
	}
	g := l.session.Geometry()
	putFloat(g.X0)
	putFloat(g.Y0)
	putFloat(g.CellWidth)
	putFloat(g.CellHeight)
	fmt.Fprintf(h, "%d|%d|%s|%d|%d|", g.CellsX, g.CellsY, l.session.Model.Key(), l.Mode, len(ms))
	for i := range ms {
		r := ms[i].Ray
		putFloat(r.Start.X)
		putFloat(r.Start.Y)
		putFloat(r.End.X)
		putFloat(r.End.Y)
	}
	return h.Sum64()
}
