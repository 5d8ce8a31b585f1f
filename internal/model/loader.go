package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/mlstm/internal/tensor"
)

var (
	ErrMissingArray = errors.New("model: missing weight array")
	ErrArrayShape   = errors.New("model: malformed weight array")
)

// Array is a named dense float32 array in row-major order.
type Array struct {
	Name  string
	Shape []int
	Data  []float32
}

// Source supplies weight arrays by name. Implementations return an error
// wrapping ErrMissingArray when name is absent.
type Source interface {
	Array(name string) (Array, error)
}

// Names of the stored arrays, in load order.
const (
	ArrayEmbed = "embd"
	ArrayOutW  = "w"
	ArrayOutB  = "b"
	ArrayWx    = "wx"
	ArrayWh    = "wh"
	ArrayGateB = "b0"
	ArrayModX  = "wmx"
	ArrayModH  = "wmh"
)

// ArrayNames lists every array Load reads.
var ArrayNames = []string{ArrayEmbed, ArrayOutW, ArrayOutB, ArrayWx, ArrayWh, ArrayGateB, ArrayModX, ArrayModH}

// ExpectedShapes returns the shape of every stored array for cfg.
func ExpectedShapes(cfg Config) map[string][]int {
	return map[string][]int{
		ArrayEmbed: {cfg.Vocab, cfg.Embed},
		ArrayOutW:  {cfg.Hidden, cfg.Output},
		ArrayOutB:  {cfg.Output},
		ArrayWx:    {cfg.Embed, 4 * cfg.Hidden},
		ArrayWh:    {cfg.Hidden, 4 * cfg.Hidden},
		ArrayGateB: {4 * cfg.Hidden},
		ArrayModX:  {cfg.Embed, cfg.Hidden},
		ArrayModH:  {cfg.Hidden, cfg.Hidden},
	}
}

// Load builds a model from src. Every array must be present with its exact
// shape; the first failure aborts the load and names the array.
func Load(src Source, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{Config: cfg}
	shapes := ExpectedShapes(cfg)

	read := func(name string) (Array, error) {
		a, err := src.Array(name)
		if err != nil {
			return Array{}, fmt.Errorf("load %s: %w", name, err)
		}
		want := shapes[name]
		if !slices.Equal(a.Shape, want) {
			return Array{}, fmt.Errorf("load %s: %w: shape %v, want %v", name, ErrArrayShape, a.Shape, want)
		}
		if n := numElements(want); len(a.Data) != n {
			return Array{}, fmt.Errorf("load %s: %w: %d values, want %d", name, ErrArrayShape, len(a.Data), n)
		}
		return a, nil
	}
	matrix := func(name string) (tensor.Mat, error) {
		a, err := read(name)
		if err != nil {
			return tensor.Mat{}, err
		}
		return tensor.NewMatFromData(a.Shape[0], a.Shape[1], a.Data)
	}

	var err error
	if m.Embed.Weight, err = matrix(ArrayEmbed); err != nil {
		return nil, err
	}
	if m.Project.Weight, err = matrix(ArrayOutW); err != nil {
		return nil, err
	}
	b, err := read(ArrayOutB)
	if err != nil {
		return nil, err
	}
	m.Project.Bias = b.Data

	wx, err := matrix(ArrayWx)
	if err != nil {
		return nil, err
	}
	wh, err := matrix(ArrayWh)
	if err != nil {
		return nil, err
	}
	b0, err := read(ArrayGateB)
	if err != nil {
		return nil, err
	}
	h := cfg.Hidden
	for k, g := range SplitOrder {
		xw, err := wx.ColView(k*h, (k+1)*h)
		if err != nil {
			return nil, fmt.Errorf("split %s %s: %w", ArrayWx, g, err)
		}
		hw, err := wh.ColView(k*h, (k+1)*h)
		if err != nil {
			return nil, fmt.Errorf("split %s %s: %w", ArrayWh, g, err)
		}
		m.Cell.xProj(g).Weight = xw
		hp := m.Cell.hProj(g)
		hp.Weight = hw
		hp.Bias = b0.Data[k*h : (k+1)*h : (k+1)*h]
	}

	if m.Cell.Wmx.Weight, err = matrix(ArrayModX); err != nil {
		return nil, err
	}
	if m.Cell.Wmh.Weight, err = matrix(ArrayModH); err != nil {
		return nil, err
	}
	return m, nil
}

// Export returns the model's parameters in stored form, re-joining the gate
// blocks in SplitOrder. It is the inverse of Load.
func Export(m *Model) ([]Array, error) {
	var xs, hs []tensor.Mat
	b0 := make([]float32, 0, 4*m.Config.Hidden)
	for _, g := range SplitOrder {
		xs = append(xs, m.Cell.xProj(g).Weight)
		hp := m.Cell.hProj(g)
		hs = append(hs, hp.Weight)
		b0 = append(b0, hp.Bias...)
	}
	wx, err := tensor.ConcatCols(xs...)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", ArrayWx, err)
	}
	wh, err := tensor.ConcatCols(hs...)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", ArrayWh, err)
	}
	mat := func(name string, w tensor.Mat) Array {
		c := w.Contiguous()
		return Array{Name: name, Shape: c.Shape(), Data: c.Data}
	}
	return []Array{
		mat(ArrayEmbed, m.Embed.Weight),
		mat(ArrayOutW, m.Project.Weight),
		{Name: ArrayOutB, Shape: []int{len(m.Project.Bias)}, Data: m.Project.Bias},
		mat(ArrayWx, wx),
		mat(ArrayWh, wh),
		{Name: ArrayGateB, Shape: []int{len(b0)}, Data: b0},
		mat(ArrayModX, m.Cell.Wmx.Weight),
		mat(ArrayModH, m.Cell.Wmh.Weight),
	}, nil
}

// MapSource serves arrays from memory.
type MapSource map[string]Array

func (s MapSource) Array(name string) (Array, error) {
	a, ok := s[name]
	if !ok {
		return Array{}, ErrMissingArray
	}
	return a, nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
