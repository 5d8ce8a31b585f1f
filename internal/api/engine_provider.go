package api

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/model"
)

// EngineProvider hands out a fresh engine over the shared model.
type EngineProvider interface {
	WithEngine(ctx context.Context, fn func(engine *inference.Engine) error) error
	Config() model.Config
}

// BoundedEngineProvider shares one read-only model across requests and caps
// the number of sessions running at once.
type BoundedEngineProvider struct {
	model *model.Model
	sem   *semaphore.Weighted
}

func NewBoundedEngineProvider(m *model.Model, maxConcurrent int) *BoundedEngineProvider {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BoundedEngineProvider{
		model: m,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (p *BoundedEngineProvider) Config() model.Config { return p.model.Config }

func (p *BoundedEngineProvider) WithEngine(ctx context.Context, fn func(engine *inference.Engine) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer p.sem.Release(1)
	return fn(inference.New(p.model))
}
