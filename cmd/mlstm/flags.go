package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mlstm/internal/model"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	// appConfig is the parsed config file, set before any command runs.
	appConfig Config
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/mlstm/config.yaml)",
		Sources:     cli.EnvVars("MLSTM_CONFIG"),
		Destination: &configFile,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// modelFlags are shared by every command that loads weights.
type modelFlags struct {
	weights string
	embed   int64
	hidden  int64
}

func (f *modelFlags) flags() []cli.Flag {
	def := model.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "weights",
			Aliases:     []string{"w"},
			Usage:       "directory of .npy arrays or a .safetensors file",
			Destination: &f.weights,
		},
		&cli.Int64Flag{
			Name:        "embed",
			Usage:       "embedding width",
			Value:       int64(def.Embed),
			Destination: &f.embed,
		},
		&cli.Int64Flag{
			Name:        "hidden",
			Usage:       "hidden width (number of neurons)",
			Value:       int64(def.Hidden),
			Destination: &f.hidden,
		},
	}
}

func (f *modelFlags) config() model.Config {
	cfg := model.DefaultConfig()
	cfg.Embed = int(f.embed)
	cfg.Hidden = int(f.hidden)
	return cfg
}
