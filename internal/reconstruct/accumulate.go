package reconstruct

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// sums accumulates weighted contributions per cell.
type sums struct {
	value  []float64
	weight []float64
}

func newSums(cells int) *sums {
	return &sums{value: make([]float64, cells), weight: make([]float64, cells)}
}

// add records that a ray proposes v for cell index with weight w.
func (s *sums) add(index int, v, w float64) {
	s.value[index] += v * w
	s.weight[index] += w
}

func (s *sums) merge(o *sums) {
	for i := range s.value {
		s.value[i] += o.value[i]
		s.weight[i] += o.weight[i]
	}
}

// mean returns the weighted mean proposal for cell i, or unknown when no ray
// contributed.
func (s *sums) mean(i int, unknown float64) float64 {
	if s.weight[i] > 0 {
		return s.value[i] / s.weight[i]
	}
	return unknown
}

// project is applied once per measurement and adds its contributions to acc.
type project func(m *Measurement, acc *sums)

// fanOut applies fn to every measurement. With more than one worker the
// measurements are split into contiguous chunks, each accumulated into its
// own partial sums, and the partials are merged afterwards.
func fanOut(ms []Measurement, workers, cells int, fn project) (*sums, error) {
	if workers <= 1 || len(ms) < 2*workers {
		acc := newSums(cells)
		for i := range ms {
			fn(&ms[i], acc)
		}
		return acc, nil
	}

	partials := make([]*sums, workers)
	chunk := (len(ms) + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(ms))
		partials[w] = newSums(cells)
		if lo >= hi {
			continue
		}
		acc := partials[w]
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("back-projection worker panicked: %v", p)
				}
			}()
			for i := lo; i < hi; i++ {
				fn(&ms[i], acc)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := partials[0]
	for _, p := range partials[1:] {
		total.merge(p)
	}
	return total, nil
}
