package reconstruct

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSolverDivergence is returned when a solver stops without meeting its
// convergence criterion.
var ErrSolverDivergence = errors.New("solver did not converge")

const (
	DefaultMaxIterations = 20000
	DefaultTolerance     = 1e-9

	// maxPassiveCondition rejects passive sets whose columns are numerically
	// dependent.
	maxPassiveCondition = 1e12
)

// SolverOptions bounds the work a solver may do.
type SolverOptions struct {
	// MaxIterations caps gradient steps for BoundedLeastSquares and
	// passive-set changes for NonNegative.
	MaxIterations int
	// Tolerance is the largest projected step, relative to the solution
	// magnitude, at which BoundedLeastSquares has converged.
	Tolerance float64
}

func DefaultSolverOptions() SolverOptions {
	return SolverOptions{MaxIterations: DefaultMaxIterations, Tolerance: DefaultTolerance}
}

func (o SolverOptions) maxIterations() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return DefaultMaxIterations
}

func (o SolverOptions) tolerance() float64 {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return DefaultTolerance
}

// SolveBoundedLeastSquares minimises |a·x - b|² subject to x <= 0 with
// accelerated projected gradient steps, restarting the momentum whenever it
// stops helping. x0 seeds the iteration when it has the right length.
// It returns the solution and the number of iterations taken.
func SolveBoundedLeastSquares(a *CSR, b, x0 []float64, opts SolverOptions) ([]float64, int, error) {
	m, n := a.Dims()
	if len(b) != m {
		return nil, 0, fmt.Errorf("right-hand side has %d rows, matrix has %d", len(b), m)
	}
	x := make([]float64, n)
	if len(x0) == n {
		for i, v := range x0 {
			x[i] = math.Min(0, v)
		}
	}
	lip := lipschitz(a)
	if lip == 0 {
		return x, 0, nil
	}

	tol := opts.tolerance()
	maxIter := opts.maxIterations()
	y := append([]float64(nil), x...)
	next := make([]float64, n)
	resid := make([]float64, m)
	grad := make([]float64, n)
	t := 1.0
	for k := 1; k <= maxIter; k++ {
		a.MulVecTo(resid, y)
		floats.Sub(resid, b)
		a.MulTransVecTo(grad, resid)

		var step, restart float64
		for i := range next {
			v := math.Min(0, y[i]-grad[i]/lip)
			next[i] = v
			step = math.Max(step, math.Abs(v-y[i]))
			restart += (y[i] - v) * (v - x[i])
		}
		if step <= tol*math.Max(1, floats.Norm(next, math.Inf(1))) {
			return next, k, nil
		}
		if restart > 0 {
			t = 1
		}
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		beta := (t - 1) / tNext
		for i := range y {
			y[i] = next[i] + beta*(next[i]-x[i])
		}
		x, next = next, x
		t = tNext
	}
	return x, maxIter, fmt.Errorf("%w: bounded least squares after %d iterations", ErrSolverDivergence, maxIter)
}

// lipschitz estimates the largest eigenvalue of aᵀa by power iteration,
// with a safety margin.
func lipschitz(a *CSR) float64 {
	m, n := a.Dims()
	if m == 0 || n == 0 || a.NNZ() == 0 {
		return 0
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	av := make([]float64, m)
	w := make([]float64, n)
	var lambda float64
	for i := 0; i < 200; i++ {
		a.MulVecTo(av, v)
		a.MulTransVecTo(w, av)
		norm := floats.Norm(w, 2)
		if norm == 0 {
			return 0
		}
		floats.ScaleTo(v, 1/norm, w)
		done := math.Abs(norm-lambda) <= 1e-10*norm
		lambda = norm
		if done {
			break
		}
	}
	return 1.1 * lambda
}

// SolveNNLS minimises |a·x - b|² subject to x >= 0 with the Lawson-Hanson
// active set method. Each passive-set subproblem is solved by QR.
func SolveNNLS(a *mat.Dense, b []float64, opts SolverOptions) ([]float64, error) {
	m, n := a.Dims()
	if len(b) != m {
		return nil, fmt.Errorf("right-hand side has %d rows, matrix has %d", len(b), m)
	}
	x := make([]float64, n)
	if m == 0 || n == 0 {
		return x, nil
	}
	maxIter := max(opts.maxIterations(), 3*n)
	tol := 10 * 2.220446049250313e-16 * mat.Norm(a, 1) * float64(max(m, n))
	bv := mat.NewVecDense(m, b)

	passive := make([]bool, n)
	blocked := make([]bool, n)
	w := make([]float64, n)
	resid := mat.NewVecDense(m, nil)
	gradient := func() {
		resid.MulVec(a, mat.NewVecDense(n, x))
		resid.SubVec(bv, resid)
		wv := mat.NewVecDense(n, w)
		wv.MulVec(a.T(), resid)
	}

	for iter := 0; ; iter++ {
		gradient()
		t, best := -1, tol
		for j := range w {
			if !passive[j] && !blocked[j] && w[j] > best {
				t, best = j, w[j]
			}
		}
		if t < 0 {
			return x, nil
		}
		if iter >= maxIter {
			return x, fmt.Errorf("%w: nnls after %d iterations", ErrSolverDivergence, iter)
		}
		passive[t] = true

		for inner := 0; ; inner++ {
			if inner > 3*n {
				return x, fmt.Errorf("%w: nnls inner loop did not settle", ErrSolverDivergence)
			}
			idx := indicesOf(passive)
			if len(idx) == 0 {
				break
			}
			z, ok := solvePassive(a, bv, idx)
			if ok && inner == 0 {
				// the entering column must move into the feasible region
				for k, j := range idx {
					if j == t && z[k] <= 0 {
						ok = false
					}
				}
			}
			if !ok {
				passive[t] = false
				blocked[t] = true
				break
			}
			feasible := true
			for _, v := range z {
				if v <= 0 {
					feasible = false
					break
				}
			}
			if feasible {
				for k, j := range idx {
					x[j] = z[k]
				}
				clear(blocked)
				break
			}
			alpha := math.Inf(1)
			for k, j := range idx {
				if z[k] > 0 {
					continue
				}
				step := 0.0
				if d := x[j] - z[k]; d > 0 {
					step = x[j] / d
				}
				alpha = math.Min(alpha, step)
			}
			for k, j := range idx {
				x[j] += alpha * (z[k] - x[j])
			}
			for _, j := range idx {
				if x[j] <= tol {
					x[j] = 0
					passive[j] = false
				}
			}
		}
	}
}

func indicesOf(set []bool) []int {
	var idx []int
	for j, in := range set {
		if in {
			idx = append(idx, j)
		}
	}
	return idx
}

// solvePassive solves the unconstrained least-squares problem on the columns
// idx of a. ok is false when those columns are numerically dependent.
func solvePassive(a *mat.Dense, b *mat.VecDense, idx []int) ([]float64, bool) {
	m, _ := a.Dims()
	if len(idx) == 0 || len(idx) > m {
		return nil, false
	}
	sub := mat.NewDense(m, len(idx), nil)
	col := make([]float64, m)
	for k, j := range idx {
		sub.SetCol(k, mat.Col(col, j, a))
	}
	var qr mat.QR
	qr.Factorize(sub)
	if qr.Cond() > maxPassiveCondition {
		return nil, false
	}
	var z mat.VecDense
	if err := qr.SolveVecTo(&z, false, b); err != nil {
		return nil, false
	}
	return z.RawVector().Data, true
}
