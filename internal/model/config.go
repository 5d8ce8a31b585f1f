package model

import "fmt"

// Config fixes the architecture of a character-level mLSTM.
type Config struct {
	Vocab  int `json:"vocab" yaml:"vocab"`
	Embed  int `json:"embed" yaml:"embed"`
	Hidden int `json:"hidden" yaml:"hidden"`
	Output int `json:"output" yaml:"output"`
}

// DefaultConfig is the byte-level model the stored weights were trained for.
func DefaultConfig() Config {
	return Config{
		Vocab:  256,
		Embed:  64,
		Hidden: 4096,
		Output: 256,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Vocab <= 0 || c.Vocab > 256:
		return fmt.Errorf("model: vocab must be in [1,256], got %d", c.Vocab)
	case c.Embed <= 0:
		return fmt.Errorf("model: embed must be positive, got %d", c.Embed)
	case c.Hidden <= 0:
		return fmt.Errorf("model: hidden must be positive, got %d", c.Hidden)
	case c.Output <= 0 || c.Output > 256:
		return fmt.Errorf("model: output must be in [1,256], got %d", c.Output)
	}
	return nil
}

// Gate identifies one of the four LSTM gates.
type Gate int

const (
	GateInput Gate = iota
	GateForget
	GateOutput
	GateUpdate
)

func (g Gate) String() string {
	switch g {
	case GateInput:
		return "input"
	case GateForget:
		return "forget"
	case GateOutput:
		return "output"
	case GateUpdate:
		return "update"
	default:
		return fmt.Sprintf("gate(%d)", int(g))
	}
}

// SplitOrder is the block order of the concatenated wx, wh and b0 arrays.
// It differs from evaluation order and must match the stored weights.
var SplitOrder = [4]Gate{GateInput, GateForget, GateOutput, GateUpdate}
