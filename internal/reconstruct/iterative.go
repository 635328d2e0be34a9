package reconstruct

import (
	"fmt"
	"math"

	"github.com/banshee-data/lightskin/internal/influence"
)

const (
	// DistributeTolerance ends multiplicative redistribution once the
	// undistributed factor is this close to 1.
	DistributeTolerance = 1e-4
	// LogDistributeTolerance ends log-space redistribution once the
	// undistributed delta is this close to 0.
	LogDistributeTolerance = 1e-5
	// MinTransmission floors measured intensities before taking logarithms.
	MinTransmission = 1e-6
)

// RoundFunc observes the transmission estimate after each round of an
// iterative engine. values must not be retained.
type RoundFunc func(round int, values []float64)

type iterativeKind int

const (
	kindRepeated iterativeKind = iota
	kindDistribute
	kindLogarithmic
)

// iterative re-predicts every ray from the current estimate and
// back-projects only the residual, for a fixed number of rounds.
type iterative struct {
	base
	kind iterativeKind

	// Repetitions is the number of rounds per Calculate.
	Repetitions int
	// UnknownValue is the update applied to cells no ray observes in a round.
	// It is unused by the logarithmic engine, where the neutral update is 0.
	UnknownValue float64
	// OnRound, when set, is called after every round.
	OnRound RoundFunc
}

func (it *iterative) Name() string {
	switch it.kind {
	case kindDistribute:
		return AlgorithmDistribute
	case kindLogarithmic:
		return AlgorithmLogarithmic
	default:
		return AlgorithmRepeated
	}
}

// ObserveRounds sets OnRound.
func (it *iterative) ObserveRounds(f RoundFunc) { it.OnRound = f }

func (it *iterative) Calculate() bool {
	return run(it.Name(), it.compute)
}

func (it *iterative) compute() error {
	if it.Repetitions < 1 {
		return fmt.Errorf("repetitions must be positive, got %d", it.Repetitions)
	}
	ms := it.session.Measurements()
	if it.kind == kindLogarithmic {
		return it.computeLog(ms)
	}

	buf := make([]float64, it.cells())
	for i := range buf {
		buf[i] = 1
	}
	for round := 0; round < it.Repetitions; round++ {
		acc, err := fanOut(ms, it.workers(), len(buf), func(m *Measurement, acc *sums) {
			predicted := predictedTransmission(buf, m.Influences)
			if predicted <= 0 {
				return
			}
			residual := m.Factor() / predicted
			if it.kind == kindDistribute {
				distribute(buf, m.Influences, residual, acc)
			} else {
				spreadEvenly(m, residual, acc)
			}
		})
		if err != nil {
			return err
		}
		for i := range buf {
			buf[i] = clamp01(buf[i] * acc.mean(i, it.UnknownValue))
		}
		if it.OnRound != nil {
			it.OnRound(round, buf)
		}
	}
	it.session.publish(buf)
	return nil
}

// computeLog runs the rounds on log-transmission, bounded above by 0, and
// exponentiates once at the end.
func (it *iterative) computeLog(ms []Measurement) error {
	buf := make([]float64, it.cells())
	var view []float64
	if it.OnRound != nil {
		view = make([]float64, len(buf))
	}
	for round := 0; round < it.Repetitions; round++ {
		acc, err := fanOut(ms, it.workers(), len(buf), func(m *Measurement, acc *sums) {
			observed := math.Log(math.Max(MinTransmission, m.Measured) / m.Expected)
			distributeLog(buf, m.Influences, observed-predictedLog(buf, m.Influences), acc)
		})
		if err != nil {
			return err
		}
		for i := range buf {
			buf[i] = math.Min(0, buf[i]+acc.mean(i, 0))
		}
		if it.OnRound != nil {
			for i, v := range buf {
				view[i] = math.Exp(v)
			}
			it.OnRound(round, view)
		}
	}
	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = math.Exp(v)
	}
	it.session.publish(out)
	return nil
}

func predictedTransmission(buf []float64, infl []influence.Influence) float64 {
	t := 1.0
	for _, in := range infl {
		t *= math.Pow(buf[in.Index], in.Weight)
	}
	return clamp01(t)
}

func predictedLog(buf []float64, infl []influence.Influence) float64 {
	var t float64
	for _, in := range infl {
		t += buf[in.Index] * in.Weight
	}
	return math.Min(0, t)
}

// distribute splits factor over the ray's cells so that no cell is pushed
// above full transmission. Cells that would be are capped and the excess is
// split among the others, until the remainder is within DistributeTolerance
// or every cell is capped. A remainder left at that point is dropped.
func distribute(buf []float64, infl []influence.Influence, factor float64, acc *sums) {
	open := infl
	rest, d := factor, 1.0
	for math.Abs(1-rest) > DistributeTolerance && len(open) > 0 {
		total := influence.TotalWeight(open)
		if total <= 0 {
			break
		}
		d = math.Pow(rest*math.Pow(d, total), 1/total)
		rest = 1

		next := make([]influence.Influence, 0, len(open))
		for _, in := range open {
			v := buf[in.Index]
			if v*d > 1 {
				capped := 1 / v
				rest *= math.Pow(d/capped, in.Weight)
				acc.add(in.Index, capped, in.Weight)
				continue
			}
			next = append(next, in)
		}
		open = next
	}
	for _, in := range open {
		acc.add(in.Index, d, in.Weight)
	}
}

// distributeLog is distribute in log space: delta is split additively and
// no cell may rise above 0.
func distributeLog(buf []float64, infl []influence.Influence, delta float64, acc *sums) {
	open := infl
	rest, d := delta, 0.0
	for math.Abs(rest) > LogDistributeTolerance && len(open) > 0 {
		total := influence.TotalWeight(open)
		if total <= 0 {
			break
		}
		d = (rest + d*total) / total
		rest = 0

		next := make([]influence.Influence, 0, len(open))
		for _, in := range open {
			v := buf[in.Index]
			if v+d > 0 {
				capped := -v
				rest += (d - capped) * in.Weight
				acc.add(in.Index, capped, in.Weight)
				continue
			}
			next = append(next, in)
		}
		open = next
	}
	for _, in := range open {
		acc.add(in.Index, d, in.Weight)
	}
}

// RepeatedBackProjection iterates BackProjection on the residual between the
// measurements and the current estimate, clamping every cell to [0, 1].
type RepeatedBackProjection struct{ iterative }

func NewRepeatedBackProjection(s *Session) *RepeatedBackProjection {
	return &RepeatedBackProjection{newIterative(s, kindRepeated)}
}

// DistributeBackProjection is RepeatedBackProjection with bounded
// redistribution: residual that would push a cell above 1 is moved onto the
// ray's other cells instead of being clipped away.
type DistributeBackProjection struct{ iterative }

func NewDistributeBackProjection(s *Session) *DistributeBackProjection {
	return &DistributeBackProjection{newIterative(s, kindDistribute)}
}

// LogBackProjection is DistributeBackProjection carried out on
// log-transmission, which stays stable on strongly attenuating paths.
type LogBackProjection struct{ iterative }

func NewLogBackProjection(s *Session) *LogBackProjection {
	return &LogBackProjection{newIterative(s, kindLogarithmic)}
}

func newIterative(s *Session, kind iterativeKind) iterative {
	return iterative{
		base:         base{session: s},
		kind:         kind,
		Repetitions:  DefaultRepetitions,
		UnknownValue: UnknownValue,
	}
}
