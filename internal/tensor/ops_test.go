package tensor

import (
	"math"
	"testing"
)

func TestSoftmaxLargeLogits(t *testing.T) {
	t.Parallel()
	x := []float32{1e4, -1e4, 3e4, 0, 3e4}
	Softmax(x)
	var sum float64
	for i, v := range x {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			t.Fatalf("x[%d]=%v out of [0,1]", i, v)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("sum=%v, want 1", sum)
	}
	if math.Abs(float64(x[2])-0.5) > 1e-5 || math.Abs(float64(x[4])-0.5) > 1e-5 {
		t.Fatalf("expected mass split between the two maxima, got %v", x)
	}
}

func TestSoftmaxZerosIsUniform(t *testing.T) {
	t.Parallel()
	x := make([]float32, 256)
	Softmax(x)
	for i, v := range x {
		if math.Abs(float64(v)-1.0/256) > 1e-7 {
			t.Fatalf("x[%d]=%v, want 1/256", i, v)
		}
	}
}

func TestArgmaxFirstOnTies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   []float32
		want int
	}{
		{[]float32{0.1, 0.7, 0.2}, 1},
		{[]float32{0.5, 0.5}, 0},
		{[]float32{0, 0, 0}, 0},
		{nil, -1},
	}
	for _, tc := range tests {
		if got := Argmax(tc.in); got != tc.want {
			t.Errorf("Argmax(%v)=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSigmoidAndTanh(t *testing.T) {
	t.Parallel()
	if Sigmoid(0) != 0.5 {
		t.Fatalf("Sigmoid(0)=%v", Sigmoid(0))
	}
	x := []float32{0, 100, -100}
	TanhInPlace(x)
	if x[0] != 0 || x[1] != 1 || x[2] != -1 {
		t.Fatalf("tanh: %v", x)
	}
}

func TestOneHotRange(t *testing.T) {
	t.Parallel()
	if _, err := OneHot(256, 256); err == nil {
		t.Fatal("expected error for code outside width")
	}
	v, err := OneHot(255, 256)
	if err != nil || v[255] != 1 {
		t.Fatalf("OneHot(255): %v %v", v[255], err)
	}
}
