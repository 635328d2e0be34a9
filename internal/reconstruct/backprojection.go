package reconstruct

import "math"

// BackProjection spreads each ray's attenuation evenly along the ray, in a
// single pass.
type BackProjection struct {
	base
	// UnknownValue is assigned to cells no ray observes.
	UnknownValue float64
}

func NewBackProjection(s *Session) *BackProjection {
	return &BackProjection{base: base{session: s}, UnknownValue: UnknownValue}
}

func (b *BackProjection) Name() string { return AlgorithmBackProjection }

func (b *BackProjection) Calculate() bool {
	return run(b.Name(), b.compute)
}

func (b *BackProjection) compute() error {
	ms := b.session.Measurements()
	acc, err := fanOut(ms, b.workers(), b.cells(), func(m *Measurement, acc *sums) {
		spreadEvenly(m, m.Factor(), acc)
	})
	if err != nil {
		return err
	}
	out := make([]float64, b.cells())
	for i := range out {
		out[i] = acc.mean(i, b.UnknownValue)
	}
	b.session.publish(out)
	return nil
}

// spreadEvenly back-projects factor onto every cell of the ray as a
// per-unit-length factor.
func spreadEvenly(m *Measurement, factor float64, acc *sums) {
	perUnit := math.Pow(factor, 1/m.Ray.Length())
	for _, in := range m.Influences {
		acc.add(in.Index, perUnit, in.Weight)
	}
}
