package api

import (
	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/version"
)

// GenerateRequest is the body of /v1/generate, /v1/render and /v1/trace.
// Unset fields take server defaults.
type GenerateRequest struct {
	Seed        string   `json:"seed" cbor:"seed"`
	Length      *int     `json:"length,omitempty" cbor:"length,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" cbor:"temperature,omitempty"`
	Neuron      *int     `json:"neuron,omitempty" cbor:"neuron,omitempty"`
	Override    *float32 `json:"override,omitempty" cbor:"override,omitempty"`
	RNGSeed     *int64   `json:"rng_seed,omitempty" cbor:"rng_seed,omitempty"`
	NeuronRange *float32 `json:"neuron_range,omitempty" cbor:"neuron_range,omitempty"`
	Width       *int     `json:"width,omitempty" cbor:"width,omitempty"`
}

type GenerateResponse struct {
	ID          string        `json:"id" cbor:"id"`
	Object      string        `json:"object" cbor:"object"`
	CreatedAt   int64         `json:"created_at" cbor:"created_at"`
	Text        string        `json:"text" cbor:"text"`
	Seed        string        `json:"seed" cbor:"seed"`
	Generated   string        `json:"generated" cbor:"generated"`
	Neuron      int           `json:"neuron" cbor:"neuron"`
	Activations []float32     `json:"activations,omitempty" cbor:"activations,omitempty"`
	Stats       ResponseStats `json:"stats" cbor:"stats"`
}

type ResponseStats struct {
	Steps       int     `json:"steps" cbor:"steps"`
	Generated   int     `json:"generated" cbor:"generated"`
	DurationMS  float64 `json:"duration_ms" cbor:"duration_ms"`
	CharsPerSec float64 `json:"chars_per_sec" cbor:"chars_per_sec"`
	MeanEntropy float64 `json:"mean_entropy" cbor:"mean_entropy"`
}

type HealthResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
	Model   model.Config `json:"model"`
	Backend string       `json:"backend"`
}

type ResponseError struct {
	Message string `json:"message,omitempty" cbor:"message,omitempty"`
	Type    string `json:"type,omitempty" cbor:"type,omitempty"`
	Code    string `json:"code,omitempty" cbor:"code,omitempty"`
	Param   string `json:"param,omitempty" cbor:"param,omitempty"`
}
