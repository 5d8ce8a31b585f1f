package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/logits"
)

var tracer = otel.Tracer("mlstm/inference")

// maxPrealloc caps the up-front capacity of the generated buffer; longer
// runs grow it as characters arrive.
const maxPrealloc = 4096

// Run warms e up on the seed and then generates req.Length further
// characters. The engine is reset first, so the result depends only on req.
//
// After each consumed character the tracked neuron (if any) is recorded. The
// generated text starts with the prediction made after the final seed byte;
// every later step feeds the previous prediction back in, writing the
// override into the neuron first when one is set.
func Run(ctx context.Context, e *Engine, req Request, stream StreamFunc) (res *Result, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	ctx, span := tracer.Start(ctx, "inference.Run")
	defer span.End()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = "canceled"
		case err != nil:
			outcome = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		sessionsTotal.WithLabelValues(outcome).Inc()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Tracking() {
		if err := e.checkNeuron(req.Neuron); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(
		attribute.Int("seed_len", len(req.Seed)),
		attribute.Int("length", req.Length),
		attribute.String("policy", req.Policy.String()),
		attribute.Int("neuron", req.Neuron),
	)

	sampler := logits.NewSampler(logits.SamplerConfig{Seed: req.RNGSeed, Policy: req.Policy})
	s := &session{engine: e, sampler: sampler, req: req, stream: stream}
	e.Reset()

	start := time.Now()
	res = &Result{Seed: append([]byte(nil), req.Seed...), Neuron: req.Neuron}
	if err := s.run(ctx, res); err != nil {
		return nil, err
	}

	res.Stats.Duration = time.Since(start)
	if secs := res.Stats.Duration.Seconds(); secs > 0 {
		res.Stats.CharsPerSec = float64(res.Stats.Generated) / secs
	}
	if s.sampled > 0 {
		res.Stats.MeanEntropy = s.entropy / float64(s.sampled)
	}
	span.SetAttributes(
		attribute.Int("steps", res.Stats.Steps),
		attribute.Int("generated", res.Stats.Generated),
	)
	return res, nil
}

type session struct {
	engine  *Engine
	sampler *logits.Sampler
	req     Request
	stream  StreamFunc

	entropy float64
	sampled int
}

func (s *session) run(ctx context.Context, res *Result) error {
	var (
		last byte
		have bool
	)
	for i, code := range s.req.Seed {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok, err := s.step(code, phaseWarmup, res)
		if err != nil {
			return fmt.Errorf("warm-up step %d: %w", i, err)
		}
		last, have = next, ok
	}

	if !s.req.Generating() {
		return nil
	}
	if !have {
		return ErrNoSampledChar
	}

	res.Generated = append(make([]byte, 0, min(s.req.Length, maxPrealloc)+1), last)
	s.emit(last)
	res.Stats.Generated++

	for i := range s.req.Length {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.req.Tracking() && s.req.Override != nil {
			if err := s.engine.OverrideNeuron(s.req.Neuron, *s.req.Override); err != nil {
				return err
			}
		}
		next, ok, err := s.step(last, phaseGenerate, res)
		if err != nil {
			return fmt.Errorf("generation step %d: %w", i, err)
		}
		if !ok {
			return ErrNoSampledChar
		}
		res.Generated = append(res.Generated, next)
		s.emit(next)
		res.Stats.Generated++
		last = next
	}
	return nil
}

// step advances the engine, records the tracked neuron and chooses the next
// character.
func (s *session) step(code byte, phase string, res *Result) (byte, bool, error) {
	t0 := time.Now()
	probs, err := s.engine.Step(code)
	if err != nil {
		return 0, false, err
	}
	stepDuration.Observe(time.Since(t0).Seconds())
	stepsTotal.WithLabelValues(phase).Inc()
	res.Stats.Steps++

	if s.req.Tracking() {
		v, err := s.engine.ReadNeuron(s.req.Neuron)
		if err != nil {
			return 0, false, err
		}
		res.Activations = append(res.Activations, v)
	}

	idx, ok := s.sampler.Choose(probs)
	if !ok {
		return 0, false, nil
	}
	if s.req.Policy.Mode == logits.ModeTemperature {
		s.entropy += logits.Entropy(logits.Rescale(probs, s.req.Policy.Temperature))
	} else {
		s.entropy += logits.Entropy32(probs)
	}
	s.sampled++
	return byte(idx), true, nil
}

func (s *session) emit(code byte) {
	if s.stream != nil {
		s.stream(string(charset.Rune(code)))
	}
}
