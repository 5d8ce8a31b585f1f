package inference

import (
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/mlstm/internal/logits"
	"github.com/samcharles93/mlstm/internal/model"
)

var ErrNeuronRange = errors.New("inference: neuron index out of range")

type Stats struct {
	// Steps counts forward passes, warm-up included.
	Steps       int
	Generated   int
	Duration    time.Duration
	CharsPerSec float64
	// MeanEntropy is the average entropy (nats) of the distributions that
	// characters were drawn from. Zero when nothing was sampled.
	MeanEntropy float64
}

type forwardFunc func(code byte, prev model.HiddenState) (model.HiddenState, []float32, error)

// Engine threads hidden state through a shared model one character at a
// time. The model is read-only; each Engine owns its state and is not safe
// for concurrent use.
type Engine struct {
	model   *model.Model
	forward forwardFunc
	state   model.HiddenState
	probs   []float32
}

// New returns an engine over m with zero initial state.
func New(m *model.Model) *Engine {
	return &Engine{
		model:   m,
		forward: m.ForwardChar,
		state:   m.InitialState(1),
	}
}

// HiddenSize is the number of addressable neurons.
func (e *Engine) HiddenSize() int { return e.model.Config.Hidden }

// Step feeds one character and returns the distribution over the next one.
// The returned slice is owned by the caller.
func (e *Engine) Step(code byte) ([]float32, error) {
	next, probs, err := e.safeForward(code)
	if err != nil {
		return nil, err
	}
	e.state = next
	e.probs = probs
	return probs, nil
}

func (e *Engine) safeForward(code byte) (next model.HiddenState, probs []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in forward: %v", rec)
		}
	}()
	return e.forward(code, e.state)
}

// Apply feeds code and chooses the next character with s. ok is false when
// the sampler only consumes.
func (e *Engine) Apply(code byte, s *logits.Sampler) (next byte, ok bool, err error) {
	probs, err := e.Step(code)
	if err != nil {
		return 0, false, err
	}
	idx, ok := s.Choose(probs)
	if !ok {
		return 0, false, nil
	}
	return byte(idx), true, nil
}

// OverrideNeuron sets h[0][i] = v ahead of the next Step.
func (e *Engine) OverrideNeuron(i int, v float32) error {
	if err := e.checkNeuron(i); err != nil {
		return err
	}
	e.state.H[0][i] = v
	return nil
}

// ReadNeuron returns h[0][i].
func (e *Engine) ReadNeuron(i int) (float32, error) {
	if err := e.checkNeuron(i); err != nil {
		return 0, err
	}
	return e.state.H[0][i], nil
}

func (e *Engine) checkNeuron(i int) error {
	if i < 0 || i >= e.HiddenSize() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrNeuronRange, i, e.HiddenSize())
	}
	return nil
}

// Reset returns the engine to the zero state.
func (e *Engine) Reset() {
	e.state = e.model.InitialState(1)
	e.probs = nil
}

// State returns a copy of the current hidden state.
func (e *Engine) State() model.HiddenState { return e.state.Clone() }

// Hidden returns a copy of h for the single batch row.
func (e *Engine) Hidden() []float32 {
	return append([]float32(nil), e.state.H[0]...)
}

// Last returns the distribution produced by the most recent Step, or nil.
func (e *Engine) Last() []float32 { return e.probs }
