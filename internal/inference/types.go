package inference

import (
	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/logits"
	"github.com/samcharles93/mlstm/internal/render"
)

// StreamFunc receives each generated character as it is produced.
type StreamFunc func(ch string)

// NoNeuron disables neuron tracking.
const NoNeuron = -1

// VisualizeOnly as Request.Length skips generation after warm-up.
const VisualizeOnly = -1

type Request struct {
	Seed []byte
	// Length is the number of characters generated after the first
	// prediction, or VisualizeOnly.
	Length int
	Policy logits.Policy
	// Neuron is the hidden unit to record and override, or NoNeuron.
	Neuron int
	// Override, when set with a Neuron, is written to that unit before
	// every generation step.
	Override *float32
	RNGSeed  int64
}

func (r Request) Generating() bool { return r.Length != VisualizeOnly }

func (r Request) Tracking() bool { return r.Neuron != NoNeuron }

type Result struct {
	Seed []byte
	// Generated starts with the prediction made after the last seed byte.
	Generated []byte
	Neuron    int
	// Activations holds the neuron value after each consumed character.
	Activations []float32
	Stats       Stats
}

// Codes is the seed followed by the generated bytes.
func (r *Result) Codes() []byte {
	out := make([]byte, 0, len(r.Seed)+len(r.Generated))
	out = append(out, r.Seed...)
	return append(out, r.Generated...)
}

func (r *Result) Text() string { return charset.Decode(r.Codes()) }

func (r *Result) GeneratedText() string { return charset.Decode(r.Generated) }

// Glyphs pairs characters with draw colors. With a tracked neuron the
// pairing stops at the last activation, so the final prediction, which is
// never fed back, is not drawn.
func (r *Result) Glyphs(neuronRange float32) []render.Glyph {
	if r.Neuron == NoNeuron {
		return render.Plain(r.Codes())
	}
	return render.Colorize(r.Codes(), r.Activations, neuronRange)
}
