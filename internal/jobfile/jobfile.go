// Package jobfile loads tuning job specifications. Jobs are written as YAML
// files for the CLI and arrive as JSON bodies on the sweep server; both views
// share one schema.
package jobfile

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

// Job describes one tuning run: the kernel, the problem, the tunable
// parameters and the launch arguments.
type Job struct {
	Kernel       Kernel   `yaml:"kernel" json:"kernel"`
	ProblemSize  []int64  `yaml:"problem_size" json:"problem_size"`
	Params       []Param  `yaml:"params" json:"params"`
	Restrictions []string `yaml:"restrictions,omitempty" json:"restrictions,omitempty"`

	// GridDivX distinguishes absent (nil pointer, default divisor applies)
	// from an explicit empty list (no division).
	GridDivX *[]string `yaml:"grid_div_x,omitempty" json:"grid_div_x,omitempty"`
	GridDivY *[]string `yaml:"grid_div_y,omitempty" json:"grid_div_y,omitempty"`

	Iterations int    `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Lang       string `yaml:"lang,omitempty" json:"lang,omitempty"`
	Device     int    `yaml:"device,omitempty" json:"device,omitempty"`

	Args []Arg `yaml:"args" json:"args"`
}

// Kernel names the kernel function and carries its source, either inline or
// as a file path resolved relative to the job file.
type Kernel struct {
	Name   string `yaml:"name" json:"name"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Param is one tunable parameter with its candidate values. Params keep their
// file order; it decides define order and configuration identity.
type Param struct {
	Name   string  `yaml:"name" json:"name"`
	Values []int64 `yaml:"values" json:"values"`
}

// Arg describes one kernel launch argument. Scalar arguments set Value;
// array arguments set Size and optionally Fill and Seed.
type Arg struct {
	Type  string   `yaml:"type" json:"type"`
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Size  int      `yaml:"size,omitempty" json:"size,omitempty"`
	Fill  string   `yaml:"fill,omitempty" json:"fill,omitempty"`
	Seed  int64    `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Argument fill modes.
const (
	FillZeros  = "zeros"
	FillOnes   = "ones"
	FillIota   = "iota"
	FillRandom = "random"
)

var argTypes = []string{"int32", "uint32", "int64", "float32", "float64"}

// Load reads and parses a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	job, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return job, nil
}

// Parse decodes a YAML job specification and validates it.
func Parse(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the job for structural problems. Semantic checks (duplicate
// parameters, iteration bounds) are left to the tuning engine.
func (j *Job) Validate() error {
	if j.Kernel.Name == "" {
		return fmt.Errorf("kernel.name is required")
	}
	if (j.Kernel.File == "") == (j.Kernel.Source == "") {
		return fmt.Errorf("kernel needs exactly one of file or source")
	}
	if n := len(j.ProblemSize); n < 1 || n > 2 {
		return fmt.Errorf("problem_size needs 1 or 2 entries, got %d", n)
	}
	for i, v := range j.ProblemSize {
		if v < 1 {
			return fmt.Errorf("problem_size[%d] must be at least 1, got %d", i, v)
		}
	}
	for _, p := range j.Params {
		if p.Name == "" {
			return fmt.Errorf("params: every parameter needs a name")
		}
		if len(p.Values) == 0 {
			return fmt.Errorf("params: %q has no values", p.Name)
		}
	}
	for i, a := range j.Args {
		if err := a.validate(); err != nil {
			return fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return nil
}

func (a Arg) validate() error {
	if !slices.Contains(argTypes, a.Type) {
		return fmt.Errorf("unsupported type %q", a.Type)
	}
	scalar := a.Value != nil
	array := a.Size > 0
	if scalar == array {
		return fmt.Errorf("argument needs exactly one of value (scalar) or size (array)")
	}
	if scalar {
		if a.Fill != "" {
			return fmt.Errorf("fill applies to array arguments only")
		}
		return nil
	}
	if a.Type == "int64" {
		return fmt.Errorf("int64 arrays are not supported")
	}
	switch a.Fill {
	case "", FillZeros, FillOnes, FillIota, FillRandom:
		return nil
	default:
		return fmt.Errorf("unknown fill %q", a.Fill)
	}
}

// SourceText returns the kernel source, reading Kernel.File relative to
// baseDir when the source is not inline.
func (j *Job) SourceText(baseDir string) (string, error) {
	if j.Kernel.Source != "" {
		return j.Kernel.Source, nil
	}
	path := j.Kernel.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read kernel source: %w", err)
	}
	return string(data), nil
}

// Problem returns the problem size.
func (j *Job) Problem() tuner.ProblemSize {
	p := tuner.ProblemSize{X: j.ProblemSize[0], Y: 1}
	if len(j.ProblemSize) == 2 {
		p.Y = j.ProblemSize[1]
	}
	return p
}

// Domain builds the tuning domain from the job's parameters.
func (j *Job) Domain() (*tuner.Domain, error) {
	d := &tuner.Domain{}
	for _, p := range j.Params {
		if err := d.Add(p.Name, p.Values...); err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
	}
	return d, nil
}

// BuildArgs materializes the argument list. Array fills are deterministic:
// random data comes from a seeded source, so repeated runs see identical
// inputs.
func (j *Job) BuildArgs() (tuner.Args, error) {
	args := make(tuner.Args, 0, len(j.Args))
	for i, a := range j.Args {
		v, err := a.build()
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func (a Arg) build() (any, error) {
	if a.Value != nil {
		switch a.Type {
		case "int32":
			return int32(*a.Value), nil
		case "uint32":
			return uint32(*a.Value), nil
		case "int64":
			return int64(*a.Value), nil
		case "float32":
			return float32(*a.Value), nil
		case "float64":
			return *a.Value, nil
		}
		return nil, fmt.Errorf("unsupported scalar type %q", a.Type)
	}

	rng := rand.New(rand.NewSource(a.Seed))
	elem := func(i int) float64 {
		switch a.Fill {
		case "", FillZeros:
			return 0
		case FillOnes:
			return 1
		case FillIota:
			return float64(i)
		case FillRandom:
			return rng.Float64()
		}
		return 0
	}

	switch a.Type {
	case "int32":
		out := make([]int32, a.Size)
		for i := range out {
			out[i] = int32(elem(i) * scaleFor(a.Fill))
		}
		return out, nil
	case "uint32":
		out := make([]uint32, a.Size)
		for i := range out {
			out[i] = uint32(elem(i) * scaleFor(a.Fill))
		}
		return out, nil
	case "float32":
		out := make([]float32, a.Size)
		for i := range out {
			out[i] = float32(elem(i))
		}
		return out, nil
	case "float64":
		out := make([]float64, a.Size)
		for i := range out {
			out[i] = elem(i)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported array type %q", a.Type)
}

// scaleFor spreads random integer fills over [0, 100) instead of collapsing
// them all to zero.
func scaleFor(fill string) float64 {
	if fill == FillRandom {
		return 100
	}
	return 1
}

// Request assembles the engine request for this job.
func (j *Job) Request(baseDir string) (tuner.Request, error) {
	src, err := j.SourceText(baseDir)
	if err != nil {
		return tuner.Request{}, err
	}
	dom, err := j.Domain()
	if err != nil {
		return tuner.Request{}, err
	}
	args, err := j.BuildArgs()
	if err != nil {
		return tuner.Request{}, err
	}
	return tuner.Request{
		KernelName: j.Kernel.Name,
		Source:     src,
		Problem:    j.Problem(),
		Args:       args,
		Domain:     dom,
	}, nil
}

// Options assembles the engine options for this job. Logging and verbosity
// are the caller's concern.
func (j *Job) Options() tuner.Options {
	return tuner.Options{
		GridDivX:     divisors(j.GridDivX),
		GridDivY:     divisors(j.GridDivY),
		Restrictions: j.Restrictions,
		Iterations:   j.Iterations,
	}
}

// divisors maps the jobfile pointer encoding onto the engine's nil-vs-empty
// convention: an absent key keeps the default, an explicit empty list
// disables division.
func divisors(p *[]string) []string {
	if p == nil {
		return nil
	}
	if *p == nil {
		return []string{}
	}
	return *p
}
