package reconstruct

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lightskin/internal/influence"
)

// CSR is a compressed sparse row matrix built one influence list per row.
// It satisfies mat.Matrix so it can be handed to gonum routines directly.
type CSR struct {
	cols    int
	indptr  []int
	indices []int
	data    []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR returns an empty matrix with the given number of columns.
func NewCSR(cols int) *CSR {
	return &CSR{cols: cols, indptr: []int{0}}
}

// AppendRow adds a row holding the weights of infl at their cell indices.
// infl must be sorted by index without duplicates.
func (c *CSR) AppendRow(infl []influence.Influence) {
	for _, in := range infl {
		c.indices = append(c.indices, in.Index)
		c.data = append(c.data, in.Weight)
	}
	c.indptr = append(c.indptr, len(c.indices))
}

func (c *CSR) Dims() (r, cols int) { return len(c.indptr) - 1, c.cols }

func (c *CSR) At(i, j int) float64 {
	r, cols := c.Dims()
	if i < 0 || i >= r {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= cols {
		panic(mat.ErrColAccess)
	}
	lo, hi := c.indptr[i], c.indptr[i+1]
	k := lo + sort.SearchInts(c.indices[lo:hi], j)
	if k < hi && c.indices[k] == j {
		return c.data[k]
	}
	return 0
}

func (c *CSR) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// NNZ returns the number of stored entries.
func (c *CSR) NNZ() int { return len(c.data) }

// MulVecTo stores c·x in dst.
func (c *CSR) MulVecTo(dst, x []float64) {
	for i := range dst {
		var sum float64
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			sum += c.data[k] * x[c.indices[k]]
		}
		dst[i] = sum
	}
}

// MulTransVecTo stores cᵀ·x in dst.
func (c *CSR) MulTransVecTo(dst, x []float64) {
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < len(c.indptr)-1; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			dst[c.indices[k]] += c.data[k] * xi
		}
	}
}

// ToDense expands the matrix.
func (c *CSR) ToDense() *mat.Dense {
	r, cols := c.Dims()
	if r == 0 || cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(r, cols, nil)
	for i := 0; i < r; i++ {
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			d.Set(i, c.indices[k], c.data[k])
		}
	}
	return d
}
