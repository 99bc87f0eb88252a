package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/anantzoid/kernel-tuner/internal/device"
	"github.com/anantzoid/kernel-tuner/internal/jobfile"
	"github.com/anantzoid/kernel-tuner/internal/logger"
	"github.com/anantzoid/kernel-tuner/internal/report"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

func tuneCmd() *cli.Command {
	return &cli.Command{
		Name:  "tune",
		Usage: "Sweep every configuration of a tuning job and report the fastest",
		Flags: append(append(commonJobFlags(),
			&cli.Int64Flag{
				Name:        "iterations",
				Aliases:     []string{"i"},
				Usage:       "benchmark samples per configuration (min 3)",
				Destination: &iterations,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "log skipped configurations at info level",
				Destination: &verbose,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "directory for JSON reports",
				Value:       "reports",
				Destination: &outputDir,
			}),
			loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			log := newLogger(cmd, cfg)

			job, err := jobfile.Load(jobPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			req, err := job.Request(filepath.Dir(jobPath))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dev, lang, err := openDevice(resolveLang(cmd, job, cfg), req.Source, resolveDeviceIndex(cmd, job, cfg), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = dev.Close() }()

			opts := job.Options()
			opts.Iterations = resolveIterations(cmd, job, cfg)
			opts.Verbose = verbose
			opts.Log = log

			start := time.Now()
			results, err := tuner.Sweep(ctx, dev, req, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: sweep: %v", err), 1)
			}
			elapsed := time.Since(start)

			printResults(results, elapsed)
			if results.Len() == 0 {
				return nil
			}

			rep := report.New(req.KernelName, lang, dev.Name(), req.Problem, opts.Iterations, results)
			path, err := rep.Save(resolveOutputDir(cmd, cfg))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("report written", "path", path)
			return nil
		},
	}
}

// openDevice resolves the language, detecting it from the kernel source when
// it is auto, and opens the selected device.
func openDevice(langSpec, source string, index int, log logger.Logger) (tuner.Device, tuner.Lang, error) {
	lang, err := device.Normalize(langSpec)
	if err != nil {
		return nil, "", err
	}
	if lang == device.Auto {
		lang = tuner.DetectLang(source)
		log.Debug("detected kernel language", "lang", string(lang))
	}
	dev, err := device.Open(lang, index)
	if err != nil {
		return nil, "", fmt.Errorf("%w (available backends: %s)", err, device.Available())
	}
	return dev, lang, nil
}

func printResults(results *tuner.Results, elapsed time.Duration) {
	all := results.All()
	if len(all) == 0 {
		fmt.Println("no configurations produced a result")
		return
	}

	names := all[0].Config.Names()
	for _, n := range names {
		fmt.Printf("%*s ", colWidth(n), n)
	}
	fmt.Printf("%12s\n", "time_ms")

	for _, r := range all {
		for _, n := range names {
			v, _ := r.Config.Value(n)
			fmt.Printf("%*d ", colWidth(n), v)
		}
		fmt.Printf("%12.4f\n", r.TimeMS)
	}

	best, _ := results.Best()
	fmt.Printf("\nbest: %s  %.4f ms  (%d measured in %s)\n",
		best.Config.String(), best.TimeMS, len(all), elapsed.Round(time.Millisecond))
}

func colWidth(name string) int {
	if len(name) < 8 {
		return 8
	}
	return len(name)
}
