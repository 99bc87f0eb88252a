package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/anantzoid/kernel-tuner/internal/jobfile"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Compile and launch a kernel once under a single configuration",
		Flags: append(append(commonJobFlags(),
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "pin a tunable parameter, as name=value (repeatable)",
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

			sets, err := parseSets(cmd.StringSlice("set"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			single, err := singleConfig(job, sets)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dev, _, err := openDevice(resolveLang(cmd, job, cfg), req.Source, resolveDeviceIndex(cmd, job, cfg), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = dev.Close() }()

			opts := job.Options()
			opts.Log = log

			out, err := tuner.RunOnce(ctx, dev, req, single, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: run: %v", err), 1)
			}

			if single.Len() > 0 {
				fmt.Printf("ran %s with %s\n", req.KernelName, single.String())
			} else {
				fmt.Printf("ran %s\n", req.KernelName)
			}
			for i, v := range out {
				fmt.Printf("args[%d]: %s\n", i, summarizeArg(v))
			}
			return nil
		},
	}
}

func parseSets(pairs []string) (map[string]int64, error) {
	sets := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", p)
		}
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		sets[name] = v
	}
	return sets, nil
}

// singleConfig narrows the job's parameter domain to one configuration. Every
// parameter must either carry exactly one candidate value or be pinned with
// --set.
func singleConfig(job *jobfile.Job, sets map[string]int64) (tuner.Config, error) {
	d := &tuner.Domain{}
	seen := make(map[string]bool, len(sets))
	for _, p := range job.Params {
		values := p.Values
		if v, ok := sets[p.Name]; ok {
			values = []int64{v}
			seen[p.Name] = true
		}
		if err := d.Add(p.Name, values...); err != nil {
			return tuner.Config{}, err
		}
	}
	for name := range sets {
		if !seen[name] {
			return tuner.Config{}, fmt.Errorf("--set %s: job has no such parameter", name)
		}
	}
	return d.Single()
}

func summarizeArg(v any) string {
	switch s := v.(type) {
	case []int32:
		return sliceSummary("int32", len(s), func(i int) string { return strconv.FormatInt(int64(s[i]), 10) })
	case []uint32:
		return sliceSummary("uint32", len(s), func(i int) string { return strconv.FormatUint(uint64(s[i]), 10) })
	case []float32:
		return sliceSummary("float32", len(s), func(i int) string { return strconv.FormatFloat(float64(s[i]), 'g', 6, 32) })
	case []float64:
		return sliceSummary("float64", len(s), func(i int) string { return strconv.FormatFloat(s[i], 'g', 6, 64) })
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}

func sliceSummary(typ string, n int, elem func(int) string) string {
	const maxShown = 8
	shown := min(n, maxShown)
	parts := make([]string, shown)
	for i := range parts {
		parts[i] = elem(i)
	}
	suffix := ""
	if n > maxShown {
		suffix = " ..."
	}
	return fmt.Sprintf("[]%s len=%d [%s%s]", typ, n, strings.Join(parts, " "), suffix)
}
