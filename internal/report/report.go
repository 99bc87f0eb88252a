// Package report serializes sweep outcomes as JSON documents, one file per
// sweep.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

// Param is one name/value pair of a configuration, kept as a list so the
// domain order survives serialization.
type Param struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Entry is one measured configuration.
type Entry struct {
	Instance string  `json:"instance"`
	Params   []Param `json:"params"`
	TimeMS   float64 `json:"time_ms"`
}

// Host describes the machine the sweep ran on.
type Host struct {
	Hostname string `json:"hostname,omitempty"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	NumCPU   int    `json:"num_cpu"`
}

// Report is the serialized outcome of one sweep.
type Report struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Kernel      string    `json:"kernel"`
	Lang        string    `json:"lang"`
	Device      string    `json:"device"`
	Host        Host      `json:"host"`
	ProblemSize []int64   `json:"problem_size"`
	Iterations  int       `json:"iterations"`
	Results     []Entry   `json:"results"`
	Best        *Entry    `json:"best,omitempty"`
}

// New builds a report from sweep results. The best entry is nil when the
// sweep measured nothing.
func New(kernel string, lang tuner.Lang, device string, problem tuner.ProblemSize, iterations int, results *tuner.Results) *Report {
	r := &Report{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Kernel:      kernel,
		Lang:        string(lang),
		Device:      device,
		Host:        hostInfo(),
		ProblemSize: []int64{problem.X, problem.Y},
		Iterations:  iterations,
		Results:     entries(results),
	}
	if best, ok := results.Best(); ok {
		e := entry(best)
		r.Best = &e
	}
	return r
}

func hostInfo() Host {
	h := Host{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
	}
	return h
}

func entries(results *tuner.Results) []Entry {
	all := results.All()
	out := make([]Entry, 0, len(all))
	for _, r := range all {
		out = append(out, entry(r))
	}
	return out
}

func entry(r tuner.Result) Entry {
	names := r.Config.Names()
	params := make([]Param, 0, len(names))
	for _, n := range names {
		v, _ := r.Config.Value(n)
		params = append(params, Param{Name: n, Value: v})
	}
	return Entry{
		Instance: r.Config.Instance(),
		Params:   params,
		TimeMS:   r.TimeMS,
	}
}

// Marshal renders the report as indented JSON.
func (r *Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Save writes the report into dir as <kernel>_<timestamp>.json and returns
// the file path. The directory is created if needed.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := r.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", r.Kernel, r.CreatedAt.Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Read loads a report back from disk.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
