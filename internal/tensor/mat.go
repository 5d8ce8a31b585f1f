package tensor

import "gonum.org/v1/gonum/blas/blas32"

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types; out‑of‑range indices will panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData creates a matrix over existing data without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, errNegativeDim
	}
	if r != 0 && (r*c)/r != c {
		return Mat{}, errMatTooLarge
	}
	if r*c != len(data) {
		return Mat{}, &ShapeError{Op: "mat", Want: []int{r, c}, Got: []int{len(data)}}
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}, nil
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// At returns the element at row i, column j.
func (m *Mat) At(i, j int) float32 {
	return m.Row(i)[j]
}

// Shape reports the matrix dimensions as a slice.
func (m *Mat) Shape() []int {
	return []int{m.R, m.C}
}

// ColView returns columns [start, end) as a strided view sharing m's data.
func (m *Mat) ColView(start, end int) (Mat, error) {
	if start < 0 || end > m.C || start > end {
		return Mat{}, &ShapeError{Op: "col_view", Want: []int{m.R, m.C}, Got: []int{start, end}}
	}
	if m.R == 0 {
		return Mat{C: end - start, Stride: m.Stride}, nil
	}
	return Mat{
		R:      m.R,
		C:      end - start,
		Stride: m.Stride,
		Data:   m.Data[start : (m.R-1)*m.Stride+end],
	}, nil
}

// Contiguous returns m itself when rows are packed, otherwise a packed copy.
func (m *Mat) Contiguous() Mat {
	if m.Stride == m.C {
		return *m
	}
	out := NewMat(m.R, m.C)
	for i := 0; i < m.R; i++ {
		copy(out.Row(i), m.Row(i))
	}
	return out
}

// ConcatCols joins matrices with equal row counts side by side.
func ConcatCols(parts ...Mat) (Mat, error) {
	if len(parts) == 0 {
		return Mat{}, nil
	}
	rows := parts[0].R
	cols := 0
	for _, p := range parts {
		if p.R != rows {
			return Mat{}, &ShapeError{Op: "concat_cols", Want: []int{rows}, Got: []int{p.R}}
		}
		cols += p.C
	}
	out := NewMat(rows, cols)
	for i := 0; i < rows; i++ {
		dst := out.Row(i)
		off := 0
		for _, p := range parts {
			off += copy(dst[off:], p.Row(i))
		}
	}
	return out, nil
}

func (m *Mat) general() blas32.General {
	return blas32.General{
		Rows:   m.R,
		Cols:   m.C,
		Stride: m.Stride,
		Data:   m.Data,
	}
}
