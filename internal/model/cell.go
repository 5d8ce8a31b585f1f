package model

import (
	"fmt"

	"github.com/samcharles93/mlstm/internal/tensor"
)

// HiddenState is the recurrent state threaded between steps. H is the
// visible output, C the cell memory. Both are batch-major [batch][hidden].
type HiddenState struct {
	H [][]float32
	C [][]float32
}

// Clone returns a deep copy of s.
func (s HiddenState) Clone() HiddenState {
	cp := func(src [][]float32) [][]float32 {
		out := make([][]float32, len(src))
		for i, row := range src {
			out[i] = append([]float32(nil), row...)
		}
		return out
	}
	return HiddenState{H: cp(s.H), C: cp(s.C)}
}

// Cell is a multiplicative LSTM recurrence. Input-side projections carry no
// bias; hidden-side projections take the modulated state m and carry the
// gate bias.
type Cell struct {
	WxI, WxF, WxO, WxU tensor.Linear
	WhI, WhF, WhO, WhU tensor.Linear
	Wmx, Wmh           tensor.Linear
}

// NewCell allocates a zero cell for the given input and hidden sizes.
func NewCell(input, hidden int) Cell {
	return Cell{
		WxI: tensor.NewLinear(input, hidden, false),
		WxF: tensor.NewLinear(input, hidden, false),
		WxO: tensor.NewLinear(input, hidden, false),
		WxU: tensor.NewLinear(input, hidden, false),
		WhI: tensor.NewLinear(hidden, hidden, true),
		WhF: tensor.NewLinear(hidden, hidden, true),
		WhO: tensor.NewLinear(hidden, hidden, true),
		WhU: tensor.NewLinear(hidden, hidden, true),
		Wmx: tensor.NewLinear(input, hidden, false),
		Wmh: tensor.NewLinear(hidden, hidden, false),
	}
}

// InputSize is the width of x accepted by Forward.
func (c *Cell) InputSize() int { return c.Wmx.In() }

// HiddenSize is the width of h and c.
func (c *Cell) HiddenSize() int { return c.Wmh.Out() }

func (c *Cell) xProj(g Gate) *tensor.Linear {
	switch g {
	case GateInput:
		return &c.WxI
	case GateForget:
		return &c.WxF
	case GateOutput:
		return &c.WxO
	default:
		return &c.WxU
	}
}

func (c *Cell) hProj(g Gate) *tensor.Linear {
	switch g {
	case GateInput:
		return &c.WhI
	case GateForget:
		return &c.WhF
	case GateOutput:
		return &c.WhO
	default:
		return &c.WhU
	}
}

// Forward runs one step for every row of x against prev and returns a fresh
// state. prev is not modified.
func (c *Cell) Forward(x [][]float32, prev HiddenState) (HiddenState, error) {
	if len(prev.H) != len(x) || len(prev.C) != len(x) {
		return HiddenState{}, &tensor.ShapeError{
			Op:   "mlstm_batch",
			Want: []int{len(x)},
			Got:  []int{len(prev.H), len(prev.C)},
		}
	}
	next := HiddenState{
		H: make([][]float32, len(x)),
		C: make([][]float32, len(x)),
	}
	for b := range x {
		h, cell, err := c.step(x[b], prev.H[b], prev.C[b])
		if err != nil {
			return HiddenState{}, fmt.Errorf("mlstm: row %d: %w", b, err)
		}
		next.H[b], next.C[b] = h, cell
	}
	return next, nil
}

func (c *Cell) step(x, hPrev, cPrev []float32) ([]float32, []float32, error) {
	n := c.HiddenSize()
	if len(cPrev) != n {
		return nil, nil, &tensor.ShapeError{Op: "mlstm_c", Want: []int{n}, Got: []int{len(cPrev)}}
	}

	// m = (wmx·x) ⊙ (wmh·h)
	m, err := c.Wmx.Apply(x)
	if err != nil {
		return nil, nil, fmt.Errorf("wmx: %w", err)
	}
	mh, err := c.Wmh.Apply(hPrev)
	if err != nil {
		return nil, nil, fmt.Errorf("wmh: %w", err)
	}
	tensor.Mul(m, mh)

	var gates [4][]float32
	for _, g := range SplitOrder {
		pre, err := c.xProj(g).Apply(x)
		if err != nil {
			return nil, nil, fmt.Errorf("wx %s: %w", g, err)
		}
		hm, err := c.hProj(g).Apply(m)
		if err != nil {
			return nil, nil, fmt.Errorf("wh %s: %w", g, err)
		}
		tensor.Add(pre, hm)
		if g == GateUpdate {
			tensor.TanhInPlace(pre)
		} else {
			tensor.SigmoidInPlace(pre)
		}
		gates[g] = pre
	}
	i, f, o, u := gates[GateInput], gates[GateForget], gates[GateOutput], gates[GateUpdate]

	cNew := make([]float32, n)
	for k := range cNew {
		cNew[k] = f[k]*cPrev[k] + i[k]*u[k]
	}
	hNew := append([]float32(nil), cNew...)
	tensor.TanhInPlace(hNew)
	tensor.Mul(hNew, o)
	return hNew, cNew, nil
}
