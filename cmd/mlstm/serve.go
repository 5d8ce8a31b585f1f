package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mlstm/internal/api"
	"github.com/samcharles93/mlstm/internal/inference"
	"github.com/samcharles93/mlstm/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		mf            modelFlags
		addr          string
		readTimeout   time.Duration
		maxConcurrent int64
		otelStdout    bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation API over HTTP",
		Flags: append(mf.flags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-concurrent",
				Usage:       "sessions run in parallel before requests get 503",
				Value:       4,
				Destination: &maxConcurrent,
			},
			&cli.BoolFlag{
				Name:        "otel",
				Usage:       "export trace spans to stderr",
				Destination: &otelStdout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, appConfig, &addr, &maxConcurrent)
			if maxConcurrent < 1 {
				return cli.Exit("error: --max-concurrent must be at least 1", 1)
			}

			if otelStdout {
				shutdown, err := initTracer(os.Stderr, "mlstm")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: init tracer: %v", err), 1)
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						log.Warn("tracer shutdown failed", "error", err)
					}
				}()
			}

			loaded, err := inference.Loader{Config: mf.config()}.Load(resolveWeightsPath(mf.weights, appConfig))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			log.Info("weights loaded",
				"path", loaded.Store.Path(),
				"format", loaded.Store.Format(),
				"hidden", loaded.Model.Config.Hidden,
				"elapsed", loaded.Duration,
			)

			defaults, err := serveDefaults(appConfig)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			provider := api.NewBoundedEngineProvider(loaded.Model, int(maxConcurrent))
			service := api.NewInferenceService(provider, defaults)
			server := api.NewServer(service, log.With("component", "api"))

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "max_concurrent", maxConcurrent)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
