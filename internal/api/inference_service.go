package api

import (
	"context"
	"errors"
	"math"

	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/logits"
	"github.com/samcharles93/mlstm/internal/render"
)

const (
	minWidth = 50
	maxWidth = 4000
	// maxLength bounds a single session.
	maxLength = 10000
)

type InferenceService struct {
	provider EngineProvider
	defaults inference.Defaults
}

func NewInferenceService(provider EngineProvider, defaults inference.Defaults) *InferenceService {
	return &InferenceService{provider: provider, defaults: defaults}
}

// Session is a resolved request and its outcome.
type Session struct {
	Request     inference.Request
	Result      *inference.Result
	Width       int
	NeuronRange float32
}

// Run resolves req, waits for a slot and runs the session.
func (s *InferenceService) Run(ctx context.Context, req *GenerateRequest, stream inference.StreamFunc) (*Session, error) {
	sess, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	err = s.provider.WithEngine(ctx, func(engine *inference.Engine) error {
		res, err := inference.Run(ctx, engine, sess.Request, stream)
		if err != nil {
			return err
		}
		sess.Result = res
		return nil
	})
	if err != nil {
		if isUserError(err) {
			return nil, newInvalidRequest(err.Error())
		}
		return nil, err
	}
	return sess, nil
}

func (s *InferenceService) resolve(req *GenerateRequest) (*Session, error) {
	if req == nil {
		return nil, newInvalidRequest("request body is required")
	}
	seed, err := charset.Encode(req.Seed)
	if err != nil {
		return nil, newInvalidRequestf("seed: %v", err)
	}
	if req.Length != nil && *req.Length > maxLength {
		return nil, newInvalidRequestf("length: at most %d characters per request", maxLength)
	}

	sess := &Session{Width: render.DefaultWidth, NeuronRange: render.DefaultNeuronRange}
	if req.Width != nil {
		if *req.Width < minWidth || *req.Width > maxWidth {
			return nil, newInvalidRequestf("width: must be in [%d,%d]", minWidth, maxWidth)
		}
		sess.Width = *req.Width
	}
	if req.NeuronRange != nil {
		if !finite(*req.NeuronRange) || *req.NeuronRange <= 0 {
			return nil, newInvalidRequest("neuron_range: must be a positive finite number")
		}
		sess.NeuronRange = *req.NeuronRange
	}

	if req.Override != nil && !finite(*req.Override) {
		return nil, newInvalidRequest("override: must be a finite number")
	}

	ireq, err := inference.ResolveRequest(inference.RequestOptions{
		Seed:        seed,
		Length:      req.Length,
		Temperature: req.Temperature,
		Neuron:      req.Neuron,
		Override:    req.Override,
		RNGSeed:     req.RNGSeed,
	}, s.defaults)
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	if ireq.Tracking() && ireq.Neuron >= s.provider.Config().Hidden {
		return nil, newInvalidRequestf("%v: %d not in [0,%d)", inference.ErrNeuronRange, ireq.Neuron, s.provider.Config().Hidden)
	}
	sess.Request = ireq
	return sess, nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isUserError(err error) bool {
	for _, target := range []error{
		inference.ErrNothingToDo,
		inference.ErrNoSampledChar,
		inference.ErrEmptySeed,
		inference.ErrNeuronRange,
		logits.ErrInvalidTemperature,
		charset.ErrUnrepresentable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
