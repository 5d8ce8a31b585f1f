package model

import (
	"fmt"

	"github.com/samcharles93/mlstm/internal/tensor"
)

// Model is an embedding, one mLSTM cell and an output projection to a
// distribution over the next byte. It holds no per-sequence state and is
// safe for concurrent Forward calls once loaded.
type Model struct {
	Config  Config
	Embed   tensor.Linear
	Cell    Cell
	Project tensor.Linear
}

// Output is the result of one Forward call.
type Output struct {
	Hidden HiddenState
	// Probs is [batch][Output], each row summing to 1.
	Probs [][]float32
}

// New returns a zero-initialised model for cfg.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		Config:  cfg,
		Embed:   tensor.NewLinear(cfg.Vocab, cfg.Embed, false),
		Cell:    NewCell(cfg.Embed, cfg.Hidden),
		Project: tensor.NewLinear(cfg.Hidden, cfg.Output, true),
	}, nil
}

// InitialState returns zero h and c for the given batch size.
func (m *Model) InitialState(batch int) HiddenState {
	s := HiddenState{
		H: make([][]float32, batch),
		C: make([][]float32, batch),
	}
	for b := 0; b < batch; b++ {
		s.H[b] = make([]float32, m.Config.Hidden)
		s.C[b] = make([]float32, m.Config.Hidden)
	}
	return s
}

// Forward embeds oneHot, advances the cell from prev and projects the new h
// through a numerically stable softmax.
func (m *Model) Forward(oneHot [][]float32, prev HiddenState) (Output, error) {
	emb := make([][]float32, len(oneHot))
	for b, x := range oneHot {
		e, err := m.Embed.Apply(x)
		if err != nil {
			return Output{}, fmt.Errorf("embed: %w", err)
		}
		emb[b] = e
	}
	hidden, err := m.Cell.Forward(emb, prev)
	if err != nil {
		return Output{}, err
	}
	probs := make([][]float32, len(hidden.H))
	for b, h := range hidden.H {
		logits, err := m.Project.Apply(h)
		if err != nil {
			return Output{}, fmt.Errorf("h2o: %w", err)
		}
		tensor.Softmax(logits)
		probs[b] = logits
	}
	return Output{Hidden: hidden, Probs: probs}, nil
}

// ForwardChar is Forward for a single byte code at batch size 1.
func (m *Model) ForwardChar(code byte, prev HiddenState) (HiddenState, []float32, error) {
	x, err := tensor.OneHot(int(code), m.Config.Vocab)
	if err != nil {
		return HiddenState{}, nil, fmt.Errorf("one-hot %d: %w", code, err)
	}
	out, err := m.Forward([][]float32{x}, prev)
	if err != nil {
		return HiddenState{}, nil, err
	}
	return out.Hidden, out.Probs[0], nil
}
