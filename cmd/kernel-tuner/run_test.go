package main

import (
	"strings"
	"testing"

	"github.com/anantzoid/kernel-tuner/internal/jobfile"
)

func TestParseSets(t *testing.T) {
	t.Parallel()

	sets, err := parseSets([]string{"block_size_x=64", "tile=4"})
	if err != nil {
		t.Fatalf("parseSets: %v", err)
	}
	if len(sets) != 2 || sets["block_size_x"] != 64 || sets["tile"] != 4 {
		t.Fatalf("unexpected sets: %v", sets)
	}
}

func TestParseSetsRejectsMalformedPairs(t *testing.T) {
	t.Parallel()

	cases := []string{"block_size_x", "=64", "tile=big"}
	for _, c := range cases {
		if _, err := parseSets([]string{c}); err == nil {
			t.Fatalf("parseSets(%q): expected error", c)
		}
	}
}

func TestSingleConfigPinsParameters(t *testing.T) {
	t.Parallel()

	job := &jobfile.Job{
		Params: []jobfile.Param{
			{Name: "block_size_x", Values: []int64{32, 64, 128}},
			{Name: "tile", Values: []int64{2}},
		},
	}
	cfg, err := singleConfig(job, map[string]int64{"block_size_x": 64})
	if err != nil {
		t.Fatalf("singleConfig: %v", err)
	}
	if v, _ := cfg.Value("block_size_x"); v != 64 {
		t.Fatalf("block_size_x: got %d, want 64", v)
	}
	if v, _ := cfg.Value("tile"); v != 2 {
		t.Fatalf("tile: got %d, want 2", v)
	}
}

func TestSingleConfigNeedsOneValuePerParameter(t *testing.T) {
	t.Parallel()

	job := &jobfile.Job{
		Params: []jobfile.Param{
			{Name: "block_size_x", Values: []int64{32, 64}},
		},
	}
	_, err := singleConfig(job, nil)
	if err == nil {
		t.Fatalf("expected error for ambiguous parameter")
	}
	if !strings.Contains(err.Error(), "block_size_x") {
		t.Fatalf("error should name the parameter: %v", err)
	}
}

func TestSingleConfigRejectsUnknownParameter(t *testing.T) {
	t.Parallel()

	job := &jobfile.Job{
		Params: []jobfile.Param{
			{Name: "tile", Values: []int64{2}},
		},
	}
	_, err := singleConfig(job, map[string]int64{"missing": 1})
	if err == nil || !strings.Contains(err.Error(), "no such parameter") {
		t.Fatalf("expected unknown parameter error, got %v", err)
	}
}

func TestSummarizeArg(t *testing.T) {
	t.Parallel()

	got := summarizeArg([]int32{1, 2, 3})
	if got != "[]int32 len=3 [1 2 3]" {
		t.Fatalf("unexpected summary: %q", got)
	}

	long := make([]float32, 20)
	s := summarizeArg(long)
	if !strings.Contains(s, "len=20") || !strings.Contains(s, "...") {
		t.Fatalf("long slice summary should truncate: %q", s)
	}

	if got := summarizeArg(int32(7)); got != "int32 7" {
		t.Fatalf("scalar summary: %q", got)
	}
}
