package tensor

import (
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Mul multiplies dst by src element-wise.
func Mul(dst, src []float32) {
	for i := range dst {
		dst[i] *= src[i]
	}
}

// Softmax applies the softmax function to x.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}

// SigmoidInPlace applies the logistic function to every element of x.
func SigmoidInPlace(x []float32) {
	for i, v := range x {
		x[i] = Sigmoid(v)
	}
}

// TanhInPlace applies tanh to every element of x.
func TanhInPlace(x []float32) {
	for i, v := range x {
		x[i] = float32(math.Tanh(float64(v)))
	}
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index, and an empty slice returns -1.
func Argmax(x []float32) int {
	if len(x) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

// OneHot returns a vector of the given width with a single 1 at code.
func OneHot(code, width int) ([]float32, error) {
	if code < 0 || code >= width {
		return nil, &ShapeError{Op: "one_hot", Want: []int{width}, Got: []int{code}}
	}
	v := make([]float32, width)
	v[code] = 1
	return v, nil
}
