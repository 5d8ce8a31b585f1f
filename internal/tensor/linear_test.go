package tensor

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

// fillRand fills m with values drawn uniformly from [-scale, scale).
func fillRand(m *Mat, r *rand.Rand, scale float32) {
	for i := range m.Data {
		m.Data[i] = (r.Float32()*2 - 1) * scale
	}
}

func naiveLinear(l *Linear, x []float32) []float32 {
	out := make([]float32, l.Out())
	for j := range out {
		var sum float32
		for i := range x {
			sum += x[i] * l.Weight.At(i, j)
		}
		if l.Bias != nil {
			sum += l.Bias[j]
		}
		out[j] = sum
	}
	return out
}

func TestLinearForwardMatchesNaive(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		name    string
		in, out int
		bias    bool
	}{
		{"square_bias", 8, 8, true},
		{"wide_nobias", 3, 17, false},
		{"tall_bias", 33, 5, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLinear(tc.in, tc.out, tc.bias)
			fillRand(&l.Weight, r, 1)
			for i := range l.Bias {
				l.Bias[i] = r.Float32()
			}
			x := make([]float32, tc.in)
			for i := range x {
				x[i] = r.Float32()*2 - 1
			}
			got, err := l.Apply(x)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			want := naiveLinear(&l, x)
			for j := range want {
				if math.Abs(float64(got[j]-want[j])) > 1e-4 {
					t.Fatalf("out[%d]: got %v want %v", j, got[j], want[j])
				}
			}
		})
	}
}

func TestLinearOneHotSelectsRow(t *testing.T) {
	t.Parallel()
	l := NewLinear(4, 3, false)
	for i := range l.Weight.Data {
		l.Weight.Data[i] = float32(i)
	}
	x, err := OneHot(2, 4)
	if err != nil {
		t.Fatalf("OneHot: %v", err)
	}
	got, err := l.Apply(x)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := l.Weight.Row(2)
	for j := range want {
		if got[j] != want[j] {
			t.Fatalf("out[%d]: got %v want %v", j, got[j], want[j])
		}
	}
}

func TestLinearShapeMismatch(t *testing.T) {
	t.Parallel()
	l := NewLinear(4, 2, true)
	_, err := l.Apply(make([]float32, 3))
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	var se *ShapeError
	if !errors.As(err, &se) || se.Want[0] != 4 || se.Got[0] != 3 {
		t.Fatalf("unexpected shape error: %#v", err)
	}
}

func TestColViewAndConcatCols(t *testing.T) {
	t.Parallel()
	m := NewMat(2, 8)
	for i := range m.Data {
		m.Data[i] = float32(i)
	}
	var parts []Mat
	for k := 0; k < 4; k++ {
		p, err := m.ColView(2*k, 2*k+2)
		if err != nil {
			t.Fatalf("ColView: %v", err)
		}
		if p.Stride != 8 {
			t.Fatalf("block %d: expected shared stride 8, got %d", k, p.Stride)
		}
		if p.At(1, 0) != float32(8+2*k) {
			t.Fatalf("block %d: got %v", k, p.At(1, 0))
		}
		parts = append(parts, p)
	}
	back, err := ConcatCols(parts...)
	if err != nil {
		t.Fatalf("ConcatCols: %v", err)
	}
	for i := range m.Data {
		if back.Data[i] != m.Data[i] {
			t.Fatalf("data[%d]: got %v want %v", i, back.Data[i], m.Data[i])
		}
	}
	p, _ := m.ColView(2, 4)
	p.Row(1)[0] = -1
	if m.At(1, 2) != -1 {
		t.Fatalf("view does not share storage")
	}
	if _, err := m.ColView(6, 9); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for out-of-range slice, got %v", err)
	}
}

func TestNewMatFromDataRejectsOverflow(t *testing.T) {
	t.Parallel()
	if _, err := NewMatFromData(1<<40, 1<<40, nil); !errors.Is(err, errMatTooLarge) {
		t.Fatalf("expected errMatTooLarge, got %v", err)
	}
	if _, err := NewMatFromData(-1, 2, nil); !errors.Is(err, errNegativeDim) {
		t.Fatalf("expected errNegativeDim, got %v", err)
	}
}
