package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Linear is an affine map x·W + b with W stored as [in, out].
// A nil Bias makes it a pure linear map.
type Linear struct {
	Weight Mat
	Bias   []float32
}

// NewLinear allocates a zero Linear of the given shape, with or without bias.
func NewLinear(in, out int, bias bool) Linear {
	l := Linear{Weight: NewMat(in, out)}
	if bias {
		l.Bias = make([]float32, out)
	}
	return l
}

func (l *Linear) In() int  { return l.Weight.R }
func (l *Linear) Out() int { return l.Weight.C }

// Forward writes x·W (+ b) into dst.
func (l *Linear) Forward(dst, x []float32) error {
	if len(x) != l.Weight.R {
		return &ShapeError{Op: "linear", Want: []int{l.Weight.R}, Got: []int{len(x)}}
	}
	if len(dst) != l.Weight.C {
		return &ShapeError{Op: "linear_out", Want: []int{l.Weight.C}, Got: []int{len(dst)}}
	}
	if l.Bias != nil && len(l.Bias) != l.Weight.C {
		return &ShapeError{Op: "linear_bias", Want: []int{l.Weight.C}, Got: []int{len(l.Bias)}}
	}
	var beta float32
	if l.Bias != nil {
		copy(dst, l.Bias)
		beta = 1
	}
	if l.Weight.R == 0 || l.Weight.C == 0 {
		if l.Bias == nil {
			clear(dst)
		}
		return nil
	}
	blas32.Gemv(blas.Trans, 1, l.Weight.general(),
		blas32.Vector{N: len(x), Data: x, Inc: 1},
		beta,
		blas32.Vector{N: len(dst), Data: dst, Inc: 1},
	)
	return nil
}

// Apply is Forward into a freshly allocated vector.
func (l *Linear) Apply(x []float32) ([]float32, error) {
	dst := make([]float32, l.Weight.C)
	if err := l.Forward(dst, x); err != nil {
		return nil, err
	}
	return dst, nil
}
