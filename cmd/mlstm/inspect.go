package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/weights"
)

type arrayReport struct {
	Name     string `json:"name"`
	DType    string `json:"dtype,omitempty"`
	Shape    []int  `json:"shape,omitempty"`
	Expected []int  `json:"expected,omitempty"`
	Status   string `json:"status"`
}

type inspectReport struct {
	Path   string        `json:"path"`
	Format string        `json:"format"`
	Embed  int           `json:"embed"`
	Hidden int           `json:"hidden"`
	Arrays []arrayReport `json:"arrays"`
	OK     bool          `json:"ok"`
}

// checkArrays compares stored arrays against the shapes cfg requires.
// Required arrays come first in load order, followed by any extras.
func checkArrays(infos []weights.Info, cfg model.Config) ([]arrayReport, bool) {
	want := model.ExpectedShapes(cfg)
	byName := make(map[string]weights.Info, len(infos))
	for _, in := range infos {
		byName[in.Name] = in
	}

	ok := true
	out := make([]arrayReport, 0, len(infos))
	for _, name := range model.ArrayNames {
		r := arrayReport{Name: name, Expected: want[name]}
		in, found := byName[name]
		switch {
		case !found:
			r.Status = "missing"
			ok = false
		case !slices.Equal(in.Shape, want[name]):
			r.DType, r.Shape = in.DType, in.Shape
			r.Status = "shape mismatch"
			ok = false
		default:
			r.DType, r.Shape = in.DType, in.Shape
			r.Status = "ok"
		}
		out = append(out, r)
	}

	var extras []arrayReport
	for _, in := range infos {
		if _, known := want[in.Name]; !known {
			extras = append(extras, arrayReport{Name: in.Name, DType: in.DType, Shape: in.Shape, Status: "unused"})
		}
	}
	slices.SortFunc(extras, func(a, b arrayReport) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return append(out, extras...), ok
}

func inspectCmd() *cli.Command {
	var (
		mf     modelFlags
		asJSON  bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "List stored weight arrays and check their shapes",
		Flags: append(mf.flags(),
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			cfg := mf.config()
			store, err := weights.Open(resolveWeightsPath(mf.weights, appConfig))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			infos, err := store.List()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: list arrays: %v", err), 1)
			}
			arrays, ok := checkArrays(infos, cfg)
			report := inspectReport{
				Path:   store.Path(),
				Format: store.Format(),
				Embed:  cfg.Embed,
				Hidden: cfg.Hidden,
				Arrays: arrays,
				OK:     ok,
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Printf("Weights: %s (%s)\n", report.Path, report.Format)
				fmt.Printf("Model: embed=%d hidden=%d\n\n", report.Embed, report.Hidden)
				fmt.Printf("%-6s %-8s %-14s %-14s %s\n", "NAME", "DTYPE", "SHAPE", "EXPECTED", "STATUS")
				for _, a := range report.Arrays {
					fmt.Printf("%-6s %-8s %-14s %-14s %s\n", a.Name, dashIfEmpty(a.DType), shapeString(a.Shape), shapeString(a.Expected), a.Status)
				}
			}

			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func shapeString(shape []int) string {
	if shape == nil {
		return "-"
	}
	return fmt.Sprint(shape)
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
