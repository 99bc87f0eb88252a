// Package tuner implements an exhaustive search over kernel tuning
// configurations.
//
// A sweep enumerates the cartesian product of the tunable parameters, prunes
// configurations that violate restrictions, and for each survivor derives the
// launch geometry, specializes the kernel source with compile-time defines,
// compiles and (optionally) verifies it on a Device, and benchmarks it.
// Configurations that exceed device resources are skipped; every other
// failure aborts the sweep. The result is an ordered table of measured
// configurations from which the fastest one is selected.
package tuner

import (
	"context"
	"fmt"
)

// Logger receives structured progress messages as message plus alternating
// key/value pairs. internal/logger satisfies it, as does any slog-style
// wrapper. A nil logger silences the sweep.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Request describes the kernel under test.
type Request struct {
	// KernelName is the name of the kernel function inside Source.
	KernelName string
	// Source is the kernel source text.
	Source string
	// Problem is the data extent the launch grid is derived from.
	Problem ProblemSize
	// Args are the kernel launch arguments.
	Args Args
	// Domain holds the tunable parameters. A nil domain is treated as
	// empty and produces a single unparameterized configuration.
	Domain *Domain
}

func (r Request) validate() error {
	if r.KernelName == "" {
		return fmt.Errorf("kernel name must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("kernel source must not be empty")
	}
	if err := r.Problem.validate(); err != nil {
		return err
	}
	return r.Args.validate()
}

func (r Request) domain() *Domain {
	if r.Domain == nil {
		return &Domain{}
	}
	return r.Domain
}

// Options control how a sweep runs. The zero value benchmarks every
// configuration of the domain with default geometry and no verification.
type Options struct {
	// GridDivX holds expressions whose product divides the problem x axis
	// to obtain the grid width. nil selects the default ["block_size_x"]
	// when that parameter is tuned; an explicit empty slice disables
	// division.
	GridDivX []string
	// GridDivY is the y-axis counterpart of GridDivX. It has no implicit
	// default.
	GridDivY []string
	// Restrictions are expressions a configuration must satisfy to be
	// benchmarked. A restriction that fails to evaluate rejects the
	// configuration.
	Restrictions []string
	// Answer enables correctness verification. It holds one entry per
	// argument; nil entries are unchecked, slice entries are compared
	// element-wise against the buffer the kernel produced.
	Answer []any
	// Iterations is the number of benchmark samples per configuration.
	// Zero selects DefaultIterations; values below three are invalid.
	Iterations int
	// ConstantMemory maps constant-memory symbol names to host arrays
	// copied onto the device before each launch. Requires a device that
	// implements ConstantMemorySetter.
	ConstantMemory map[string]any
	// Verbose raises skip messages from debug to info level.
	Verbose bool
	// Log receives progress messages. nil disables logging.
	Log Logger
}

func (o Options) logger() Logger {
	if o.Log != nil {
		return o.Log
	}
	return nopLogger{}
}

func (o Options) iterations() (int, error) {
	if o.Iterations == 0 {
		return DefaultIterations, nil
	}
	if o.Iterations < 3 {
		return 0, fmt.Errorf("iterations must be at least 3, got %d", o.Iterations)
	}
	return o.Iterations, nil
}

// Sweep benchmarks every viable configuration of the request's domain on dev
// and returns the measured results in generation order.
//
// Configurations are dropped silently when they violate a restriction, and
// skipped with a log message when they exceed device resources: too many
// threads per block, compilation failing for lack of shared memory, or a
// launch failing for lack of registers or other launch resources. Any other
// failure aborts the sweep and returns the results gathered so far together
// with the error. A sweep over a fully pruned domain returns an empty table
// and no error.
func Sweep(ctx context.Context, dev Device, req Request, opts Options) (*Results, error) {
	log := opts.logger()
	results := newResults()

	if err := req.validate(); err != nil {
		return results, err
	}
	iterations, err := opts.iterations()
	if err != nil {
		return results, err
	}
	if err := validateAnswer(req.Args, opts.Answer); err != nil {
		return results, err
	}
	cmem, err := constantMemorySetter(dev, opts)
	if err != nil {
		return results, err
	}
	restrictions := compileRestrictions(opts.Restrictions, log)

	dom := req.domain()
	log.Info("starting sweep",
		"kernel", req.KernelName,
		"device", dev.Name(),
		"configurations", dom.Size(),
		"iterations", iterations)

	staged, err := dev.StageArgs(req.Args)
	if err != nil {
		return results, fmt.Errorf("stage arguments: %w", err)
	}

	for c := range dom.Configs() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !satisfies(restrictions, c) {
			continue
		}

		block := Threads(c)
		if max := dev.MaxThreads(); max > 0 && block.Count() > max {
			logSkip(log, opts.Verbose, c, fmt.Sprintf("too many threads per block: %d, device limit %d", block.Count(), max))
			continue
		}

		grid, err := GridFor(req.Problem, c, opts.GridDivX, opts.GridDivY)
		if err != nil {
			return results, fmt.Errorf("configuration %s: %w", c.Instance(), err)
		}

		name, source := buildSource(req, c, grid)
		k, err := dev.Compile(name, source)
		if err != nil {
			if skippableCompile(err) {
				logSkip(log, opts.Verbose, c, err.Error())
				continue
			}
			return results, err
		}

		if cmem != nil {
			if err := cmem.SetConstantMemory(k, opts.ConstantMemory); err != nil {
				return results, fmt.Errorf("configuration %s: constant memory: %w", c.Instance(), err)
			}
		}

		if opts.Answer != nil {
			if err := verifyConfig(dev, k, staged, req.Args, opts.Answer, block, grid, name); err != nil {
				if skippableLaunch(err) {
					logSkip(log, opts.Verbose, c, err.Error())
					continue
				}
				return results, err
			}
		}

		samples, err := dev.Benchmark(k, staged, block, grid, iterations)
		if err != nil {
			if skippableLaunch(err) {
				logSkip(log, opts.Verbose, c, err.Error())
				continue
			}
			return results, err
		}
		if len(samples) == 0 {
			return results, fmt.Errorf("configuration %s: device returned no samples", c.Instance())
		}

		res := Result{Config: c, TimeMS: robustMean(samples)}
		results.add(res)
		log.Info("benchmarked configuration", "config", c.String(), "time_ms", res.TimeMS)
	}

	return results, nil
}

// RunOnce compiles and launches the kernel once under a single configuration
// and returns the arguments as the kernel left them: slice arguments are
// fresh host copies of the device buffers, scalars pass through unchanged.
// Options.Answer and Options.Iterations are ignored.
func RunOnce(ctx context.Context, dev Device, req Request, c Config, opts Options) (Args, error) {
	log := opts.logger()

	if err := req.validate(); err != nil {
		return nil, err
	}
	cmem, err := constantMemorySetter(dev, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	block := Threads(c)
	if max := dev.MaxThreads(); max > 0 && block.Count() > max {
		return nil, fmt.Errorf("configuration %s needs %d threads per block, device limit is %d", c.Instance(), block.Count(), max)
	}
	grid, err := GridFor(req.Problem, c, opts.GridDivX, opts.GridDivY)
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", c.Instance(), err)
	}

	name, source := buildSource(req, c, grid)
	staged, err := dev.StageArgs(req.Args)
	if err != nil {
		return nil, fmt.Errorf("stage arguments: %w", err)
	}
	k, err := dev.Compile(name, source)
	if err != nil {
		return nil, err
	}
	if cmem != nil {
		if err := cmem.SetConstantMemory(k, opts.ConstantMemory); err != nil {
			return nil, fmt.Errorf("constant memory: %w", err)
		}
	}

	log.Info("running kernel", "kernel", name, "block", block.String(), "grid", grid.String())
	if err := dev.Launch(k, staged, block, grid); err != nil {
		return nil, err
	}

	out := make(Args, len(req.Args))
	for i, arg := range req.Args {
		if !isSliceArg(arg) {
			out[i] = arg
			continue
		}
		host := newHostLike(arg)
		if err := dev.CopyToHost(host, staged[i]); err != nil {
			return nil, fmt.Errorf("copy argument %d: %w", i, err)
		}
		out[i] = host
	}
	return out, nil
}

// constantMemorySetter resolves the device's constant memory capability when
// the options ask for it.
func constantMemorySetter(dev Device, opts Options) (ConstantMemorySetter, error) {
	if len(opts.ConstantMemory) == 0 {
		return nil, nil
	}
	cm, ok := dev.(ConstantMemorySetter)
	if !ok {
		return nil, fmt.Errorf("device %s does not support constant memory arguments", dev.Name())
	}
	return cm, nil
}

func logSkip(log Logger, verbose bool, c Config, reason string) {
	if verbose {
		log.Info("skipping configuration", "config", c.String(), "reason", reason)
		return
	}
	log.Debug("skipping configuration", "config", c.String(), "reason", reason)
}
