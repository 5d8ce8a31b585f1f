package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mlstm/internal/charset"
	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/logger"
	"github.com/samcharles93/mlstm/internal/render"
	"github.com/samcharles93/mlstm/internal/trace"
)

// legacyNoOverride is the override value the six-argument form uses to mean
// "leave the neuron alone".
const legacyNoOverride = -0.0012

const nothingToDoMsg = "ERROR: Neither generating nor visualizing."

// positional is the six-argument form:
// seed length temperature neuron override output.
type positional struct {
	seed     string
	length   int64
	temp     float64
	neuron   int64
	override *float32
	output   string
}

func parsePositional(args []string) (positional, error) {
	if len(args) != 6 {
		return positional{}, fmt.Errorf("expected 6 positional arguments (seed length temperature neuron override output), got %d", len(args))
	}
	var (
		p   = positional{seed: args[0], output: args[5]}
		err error
	)
	if p.length, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return positional{}, fmt.Errorf("length %q: %w", args[1], err)
	}
	if p.temp, err = strconv.ParseFloat(args[2], 64); err != nil {
		return positional{}, fmt.Errorf("temperature %q: %w", args[2], err)
	}
	if p.neuron, err = strconv.ParseInt(args[3], 10, 64); err != nil {
		return positional{}, fmt.Errorf("neuron %q: %w", args[3], err)
	}
	ov, err := strconv.ParseFloat(args[4], 32)
	if err != nil {
		return positional{}, fmt.Errorf("override %q: %w", args[4], err)
	}
	if float32(ov) != float32(legacyNoOverride) {
		v := float32(ov)
		p.override = &v
	}
	return p, nil
}

func runCmd() *cli.Command {
	var (
		mf          modelFlags
		seedText    string
		length      int64
		temp        float64
		neuron      int64
		override    float64
		output      string
		rngSeed     int64
		width       int64
		neuronRange float64
		traceOut    string
		cpuProfile  string
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Warm up on seed text, generate, and render the result as a PNG",
		ArgsUsage: "[seed length temperature neuron override output]",
		Flags: append(mf.flags(),
			&cli.StringFlag{
				Name:        "seed-text",
				Aliases:     []string{"s"},
				Usage:       "text fed to the model before generation",
				Destination: &seedText,
			},
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "characters to generate after the first prediction (-1 = visualize the seed only)",
				Value:       200,
				Destination: &length,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"t"},
				Usage:       "sampling temperature (-1 = consume only, 0 = greedy)",
				Value:       0.4,
				Destination: &temp,
			},
			&cli.Int64Flag{
				Name:        "neuron",
				Usage:       "hidden unit to visualize and override (-1 = none)",
				Value:       -1,
				Destination: &neuron,
			},
			&cli.Float64Flag{
				Name:        "override",
				Usage:       "value written to --neuron before every generation step",
				Destination: &override,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "PNG output path",
				Value:       "out.png",
				Destination: &output,
			},
			&cli.Int64Flag{
				Name:        "rng-seed",
				Usage:       "sampling seed (-1 = time based)",
				Value:       -1,
				Destination: &rngSeed,
			},
			&cli.Int64Flag{
				Name:        "width",
				Usage:       "image width in pixels",
				Value:       render.DefaultWidth,
				Destination: &width,
			},
			&cli.Float64Flag{
				Name:        "neuron-range",
				Usage:       "activation magnitude mapped to full color",
				Value:       render.DefaultNeuronRange,
				Destination: &neuronRange,
			},
			&cli.StringFlag{
				Name:        "trace-out",
				Usage:       "write per-character activations as an Arrow IPC stream",
				Destination: &traceOut,
			},
			&cli.StringFlag{
				Name:        "cpuprofile",
				Usage:       "write cpu profile to file",
				Destination: &cpuProfile,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return cli.Exit(fmt.Sprintf("could not create CPU profile: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				if err := pprof.StartCPUProfile(f); err != nil {
					return cli.Exit(fmt.Sprintf("could not start CPU profile: %v", err), 1)
				}
				defer pprof.StopCPUProfile()
			}

			applyRunConfig(c, appConfig, &length, &temp, &rngSeed, &width, &neuronRange)

			var overrideVal *float32
			if c.IsSet("override") {
				v := float32(override)
				overrideVal = &v
			}
			if c.Args().Present() {
				p, err := parsePositional(c.Args().Slice())
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				seedText, length, temp, neuron, overrideVal, output = p.seed, p.length, p.temp, p.neuron, p.override, p.output
			}

			seed, err := charset.Encode(seedText)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: seed text: %v", err), 1)
			}
			l, n := int(length), int(neuron)
			req, err := inference.ResolveRequest(inference.RequestOptions{
				Seed:        seed,
				Length:      &l,
				Temperature: &temp,
				Neuron:      &n,
				Override:    overrideVal,
				RNGSeed:     &rngSeed,
			}, inference.DefaultDefaults())
			if errors.Is(err, inference.ErrNothingToDo) {
				fmt.Println(nothingToDoMsg)
				return cli.Exit("", 2)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			path := resolveWeightsPath(mf.weights, appConfig)
			loaded, err := inference.Loader{Config: mf.config()}.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			log.Info("weights loaded",
				"path", loaded.Store.Path(),
				"format", loaded.Store.Format(),
				"elapsed", loaded.Duration,
			)

			res, err := inference.Run(ctx, inference.New(loaded.Model), req, nil)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fmt.Println(res.Text())

			img := render.Draw(res.Glyphs(float32(neuronRange)), int(width))
			if err := ensureParentDir(output); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := render.WritePNG(output, img); err != nil {
				return cli.Exit(fmt.Sprintf("error: write image: %v", err), 1)
			}

			if traceOut != "" {
				if err := writeTraceFile(traceOut, res); err != nil {
					return cli.Exit(fmt.Sprintf("error: write trace: %v", err), 1)
				}
			}

			log.Info("generation complete",
				"steps", res.Stats.Steps,
				"generated", res.Stats.Generated,
				"chars_per_sec", res.Stats.CharsPerSec,
				"mean_entropy", res.Stats.MeanEntropy,
				"image", output,
			)
			return nil
		},
	}
}

func writeTraceFile(path string, res *inference.Result) (err error) {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return trace.WriteIPC(f, trace.FromResult(res))
}
