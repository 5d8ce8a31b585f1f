package logits

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/samcharles93/mlstm/internal/tensor"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConsumeTemperature is the CLI temperature that selects ModeConsume.
const ConsumeTemperature = -1

var ErrInvalidTemperature = errors.New("logits: invalid temperature")

// Mode selects how a character is chosen from a distribution.
type Mode int

const (
	// ModeConsume advances state without emitting a character.
	ModeConsume Mode = iota
	// ModeGreedy picks the most probable character.
	ModeGreedy
	// ModeTemperature samples from the temperature-rescaled distribution.
	ModeTemperature
)

func (m Mode) String() string {
	switch m {
	case ModeConsume:
		return "consume"
	case ModeGreedy:
		return "greedy"
	case ModeTemperature:
		return "temperature"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Policy is a sampling mode plus its temperature (used by ModeTemperature).
type Policy struct {
	Mode        Mode
	Temperature float64
}

// PolicyFromTemperature maps the external temperature convention onto a
// Policy: -1 consumes, 0 is greedy, >0 samples. Anything else is rejected.
func PolicyFromTemperature(t float64) (Policy, error) {
	switch {
	case math.IsNaN(t) || math.IsInf(t, 0):
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidTemperature, t)
	case t == ConsumeTemperature:
		return Policy{Mode: ModeConsume, Temperature: t}, nil
	case t == 0:
		return Policy{Mode: ModeGreedy}, nil
	case t > 0:
		return Policy{Mode: ModeTemperature, Temperature: t}, nil
	default:
		return Policy{}, fmt.Errorf("%w: %v (use -1 to consume, 0 for greedy, or a positive value)", ErrInvalidTemperature, t)
	}
}

func (p Policy) String() string {
	if p.Mode == ModeTemperature {
		return fmt.Sprintf("temperature=%g", p.Temperature)
	}
	return p.Mode.String()
}

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	// Seed fixes the draw sequence. Negative seeds from the clock.
	Seed   int64
	Policy Policy
}

// Sampler chooses characters under a Policy from a single seeded source.
// It is not safe for concurrent use.
type Sampler struct {
	src    *rand.PCG
	cfg    SamplerConfig
	scaled []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	seed := uint64(cfg.Seed)
	if cfg.Seed < 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{
		src: rand.NewPCG(seed, seed^0x5851f42d4c957f2d),
		cfg: cfg,
	}
}

// Choose selects a character index from probs. The bool is false only in
// ModeConsume, where nothing is emitted.
func (s *Sampler) Choose(probs []float32) (int, bool) {
	switch s.cfg.Policy.Mode {
	case ModeConsume:
		return 0, false
	case ModeGreedy:
		return tensor.Argmax(probs), true
	}

	s.scaled = RescaleInto(s.scaled, probs, s.cfg.Policy.Temperature)
	cat := distuv.NewCategorical(s.scaled, s.src)
	idx := int(cat.Rand())
	if idx < 0 || idx >= len(probs) {
		// Degenerate weights (all zero); fall back to the mode.
		return tensor.Argmax(probs), true
	}
	return idx, true
}

// Rescale returns p^(1/t) renormalised, which equals softmax(log(p)/t).
func Rescale(probs []float32, t float64) []float64 {
	return RescaleInto(nil, probs, t)
}

// RescaleInto is Rescale reusing dst's storage.
func RescaleInto(dst []float64, probs []float32, t float64) []float64 {
	if cap(dst) < len(probs) {
		dst = make([]float64, len(probs))
	}
	dst = dst[:len(probs)]

	// Work in log space relative to the max so small t cannot overflow.
	maxLog := math.Inf(-1)
	for _, p := range probs {
		if p > 0 {
			maxLog = math.Max(maxLog, math.Log(float64(p)))
		}
	}
	if math.IsInf(maxLog, -1) {
		clear(dst)
		return dst
	}
	var sum float64
	for i, p := range probs {
		if p <= 0 {
			dst[i] = 0
			continue
		}
		v := math.Exp((math.Log(float64(p)) - maxLog) / t)
		dst[i] = v
		sum += v
	}
	for i := range dst {
		dst[i] /= sum
	}
	return dst
}

// Entropy is the Shannon entropy of p in nats.
func Entropy(p []float64) float64 {
	return stat.Entropy(p)
}

// Entropy32 is Entropy for a float32 distribution.
func Entropy32(p []float32) float64 {
	f := make([]float64, len(p))
	for i, v := range p {
		f[i] = float64(v)
	}
	return stat.Entropy(f)
}
