package inference

import (
	"fmt"
	"strings"
	"time"

	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/weights"
)

type Loader struct {
	// Config overrides the architecture; zero means model.DefaultConfig.
	Config model.Config
}

type LoadResult struct {
	Model    *model.Model
	Store    weights.Store
	Duration time.Duration
}

// Load opens the weights at path and builds a model from them.
func (l Loader) Load(path string) (*LoadResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("weights path is required")
	}
	cfg := l.Config
	if cfg == (model.Config{}) {
		cfg = model.DefaultConfig()
	}

	start := time.Now()
	store, err := weights.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := model.Load(store, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", store.Path(), err)
	}
	return &LoadResult{Model: m, Store: store, Duration: time.Since(start)}, nil
}
