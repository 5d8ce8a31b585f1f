package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/logits"
)

// Config represents the mlstm configuration file (~/.config/mlstm/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Weights string `yaml:"weights"`

	// Generation defaults
	Length      *int64   `yaml:"length"`
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`

	// Rendering
	Width       *int64   `yaml:"width"`
	NeuronRange *float64 `yaml:"neuron_range"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	MaxConcurrent *int64 `yaml:"max_concurrent"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mlstm", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file or malformed YAML is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config,
	length *int64, temp *float64, rngSeed *int64, width *int64, neuronRange *float64,
) {
	if cfg.Length != nil && !c.IsSet("length") {
		*length = *cfg.Length
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		*temp = *cfg.Temperature
	}
	if cfg.Seed != nil && !c.IsSet("rng-seed") {
		*rngSeed = *cfg.Seed
	}
	if cfg.Width != nil && !c.IsSet("width") {
		*width = *cfg.Width
	}
	if cfg.NeuronRange != nil && !c.IsSet("neuron-range") {
		*neuronRange = *cfg.NeuronRange
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxConcurrent *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxConcurrent != nil && !c.IsSet("max-concurrent") {
		*maxConcurrent = *cfg.MaxConcurrent
	}
}

// serveDefaults builds the per-request generation defaults for the server
// from the config file, falling back to the built-in values.
func serveDefaults(cfg Config) (inference.Defaults, error) {
	d := inference.DefaultDefaults()
	if cfg.Length != nil {
		if *cfg.Length < int64(inference.VisualizeOnly) {
			return inference.Defaults{}, fmt.Errorf("config: length must be -1 or non-negative, got %d", *cfg.Length)
		}
		d.Length = int(*cfg.Length)
	}
	if cfg.Temperature != nil {
		if _, err := logits.PolicyFromTemperature(*cfg.Temperature); err != nil {
			return inference.Defaults{}, fmt.Errorf("config: temperature: %w", err)
		}
		d.Temperature = *cfg.Temperature
	}
	if cfg.Seed != nil {
		d.RNGSeed = *cfg.Seed
	}
	return d, nil
}
