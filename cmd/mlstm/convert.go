package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/logger"
	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/weights"
)

// outputFormat picks the weights format for dst: an explicit format wins,
// otherwise a .safetensors suffix selects safetensors and anything else a
// directory of .npy files.
func outputFormat(dst, explicit string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(explicit)); f {
	case "":
	case "npy", "safetensors":
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want npy or safetensors)", explicit)
	}
	if strings.EqualFold(filepath.Ext(dst), ".safetensors") {
		return "safetensors", nil
	}
	return "npy", nil
}

func convertCmd() *cli.Command {
	var (
		mf     modelFlags
		output string
		format string
	)

	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert weights between a .npy directory and a .safetensors file",
		ArgsUsage: "[src] [dst]",
		Flags: append(mf.flags(),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "destination path",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "destination format (npy or safetensors; default from the destination suffix)",
				Destination: &format,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)

			src := mf.weights
			if c.Args().Len() > 0 {
				src = c.Args().Get(0)
			}
			if c.Args().Len() > 1 {
				output = c.Args().Get(1)
			}
			src = resolveWeightsPath(src, appConfig)
			if output == "" {
				return cli.Exit("error: destination is required (--output or second argument)", 1)
			}
			output = expandHome(output)

			f, err := outputFormat(output, format)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			loaded, err := inference.Loader{Config: mf.config()}.Load(src)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			arrays, err := model.Export(loaded.Model)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: export: %v", err), 1)
			}
			if f == "safetensors" {
				if err := ensureParentDir(output); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}
			if err := weights.Save(output, f, arrays); err != nil {
				return cli.Exit(fmt.Sprintf("error: save weights: %v", err), 1)
			}

			log.Info("converted weights",
				"from", loaded.Store.Path(),
				"from_format", loaded.Store.Format(),
				"to", output,
				"to_format", f,
				"arrays", len(arrays),
			)
			return nil
		},
	}
}
