package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/mlstm/internal/logits"
)

// maxLength keeps Length+1, the size of the generated list, representable.
const maxLength = math.MaxInt - 1

var (
	ErrNothingToDo   = errors.New("inference: neither generating nor visualizing")
	ErrNoSampledChar = errors.New("inference: consume-only temperature cannot feed generation")
	ErrEmptySeed     = errors.New("inference: seed text is empty")
)

// RequestOptions carries caller-supplied values; nil fields take defaults.
type RequestOptions struct {
	Seed        []byte
	Length      *int
	Temperature *float64
	Neuron      *int
	Override    *float32
	RNGSeed     *int64
}

// Defaults fills fields a caller left unset.
type Defaults struct {
	Length      int
	Temperature float64
	RNGSeed     int64
}

func DefaultDefaults() Defaults {
	return Defaults{Length: 200, Temperature: 0.4, RNGSeed: -1}
}

// ResolveRequest merges opts over defaults and validates the result.
func ResolveRequest(opts RequestOptions, defaults Defaults) (Request, error) {
	req := Request{
		Seed:    opts.Seed,
		Length:  defaults.Length,
		Neuron:  NoNeuron,
		RNGSeed: defaults.RNGSeed,
	}
	temp := defaults.Temperature
	if opts.Length != nil {
		req.Length = *opts.Length
	}
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	if opts.Neuron != nil {
		req.Neuron = *opts.Neuron
	}
	if opts.Override != nil {
		v := *opts.Override
		req.Override = &v
	}
	if opts.RNGSeed != nil {
		req.RNGSeed = *opts.RNGSeed
	}

	policy, err := logits.PolicyFromTemperature(temp)
	if err != nil {
		return Request{}, err
	}
	req.Policy = policy
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request independently of any model.
func (r Request) Validate() error {
	switch {
	case !r.Generating() && !r.Tracking():
		return ErrNothingToDo
	case len(r.Seed) == 0:
		return ErrEmptySeed
	case r.Length < VisualizeOnly:
		return fmt.Errorf("inference: length must be -1 or non-negative, got %d", r.Length)
	case r.Length > maxLength:
		return fmt.Errorf("inference: length %d exceeds %d", r.Length, maxLength)
	case r.Neuron < NoNeuron:
		return fmt.Errorf("%w: %d", ErrNeuronRange, r.Neuron)
	case r.Generating() && r.Policy.Mode == logits.ModeConsume:
		return ErrNoSampledChar
	}
	return nil
}
