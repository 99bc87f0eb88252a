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

	"github.com/anantzoid/kernel-tuner/internal/device"
	"github.com/anantzoid/kernel-tuner/internal/jobfile"
	"github.com/anantzoid/kernel-tuner/internal/logger"
	"github.com/anantzoid/kernel-tuner/internal/report"
	"github.com/anantzoid/kernel-tuner/internal/server"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		output      string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sweep REST API",
		Flags: append([]cli.Flag{
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
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "directory for JSON reports (empty keeps reports in memory only)",
				Destination: &output,
			}},
			loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			log := newLogger(cmd, cfg)
			ctx = logger.WithContext(ctx, log)
			if cfg.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = cfg.ServerAddress
			}

			// Job files submitted over HTTP resolve kernel file paths
			// against the server's working directory.
			baseDir, err := os.Getwd()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			runner := func(ctx context.Context, job *jobfile.Job) (*report.Report, error) {
				return runSweepJob(ctx, job, baseDir, output)
			}
			manager := server.NewManager(runner, log)
			manager.Start(ctx)
			defer manager.Wait()

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.NewServer(manager).Register(e)

			log.Info("starting sweep server", "address", addr, "backends", device.Available())
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

// runSweepJob executes one submitted job on behalf of the sweep worker. The
// device is opened for the job and closed when the sweep ends.
func runSweepJob(ctx context.Context, job *jobfile.Job, baseDir, output string) (*report.Report, error) {
	log := logger.FromContext(ctx)
	req, err := job.Request(baseDir)
	if err != nil {
		return nil, err
	}

	dev, lang, err := openDevice(job.Lang, req.Source, job.Device, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dev.Close() }()

	opts := job.Options()
	if opts.Iterations == 0 {
		opts.Iterations = tuner.DefaultIterations
	}
	opts.Log = log

	results, err := tuner.Sweep(ctx, dev, req, opts)
	if err != nil {
		return nil, err
	}

	rep := report.New(req.KernelName, lang, dev.Name(), req.Problem, opts.Iterations, results)
	if output != "" {
		path, err := rep.Save(output)
		if err != nil {
			log.Warn("failed to write report file", "error", err)
		} else {
			log.Info("report written", "path", path)
		}
	}
	return rep, nil
}
