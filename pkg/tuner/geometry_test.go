package tuner

import (
	"strings"
	"testing"
)

func configOf(t *testing.T, pairs ...any) Config {
	t.Helper()
	var d Domain
	for i := 0; i < len(pairs); i += 2 {
		mustAdd(t, &d, pairs[i].(string), int64(pairs[i+1].(int)))
	}
	c, err := d.Single()
	if err != nil {
		t.Fatalf("Single: %v", err)
	}
	return c
}

func TestThreadsDefaults(t *testing.T) {
	t.Parallel()

	got := Threads(Config{})
	if got != (Dim3{256, 1, 1}) {
		t.Fatalf("Threads(empty) = %v, want (256, 1, 1)", got)
	}
}

func TestThreadsFromConfig(t *testing.T) {
	t.Parallel()

	c := configOf(t, "block_size_x", 123, "block_size_y", 257)
	got := Threads(c)
	if got != (Dim3{123, 257, 1}) {
		t.Fatalf("Threads = %v, want (123, 257, 1)", got)
	}
	if got.Count() != 123*257 {
		t.Fatalf("Count = %d", got.Count())
	}
}

func TestGridForDefaultDivisors(t *testing.T) {
	t.Parallel()

	p := ProblemSize{X: 1024, Y: 1024}
	c := configOf(t, "block_size_x", 41, "block_size_y", 37)

	// Default x divisor, explicit y divisor.
	g, err := GridFor(p, c, nil, []string{"block_size_y"})
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g != (Grid{25, 28}) {
		t.Fatalf("grid = %v, want (25, 28)", g)
	}

	// No y divisor leaves the axis untouched.
	g, err = GridFor(p, c, nil, nil)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g != (Grid{25, 1024}) {
		t.Fatalf("grid = %v, want (25, 1024)", g)
	}

	// An explicit empty x divisor list disables the default.
	g, err = GridFor(p, c, []string{}, []string{"block_size_y"})
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g != (Grid{1024, 28}) {
		t.Fatalf("grid = %v, want (1024, 28)", g)
	}
}

func TestGridForNoDefaultWithoutBlockSizeX(t *testing.T) {
	t.Parallel()

	c := configOf(t, "tile_size", 4)
	g, err := GridFor(ProblemSize{X: 100}, c, nil, nil)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g != (Grid{100, 1}) {
		t.Fatalf("grid = %v, want (100, 1)", g)
	}
}

func TestGridForDivisorExpressions(t *testing.T) {
	t.Parallel()

	c := configOf(t, "block_size_x", 32, "tile_size", 4)
	g, err := GridFor(ProblemSize{X: 1000}, c, []string{"block_size_x", "tile_size"}, nil)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	// 1000 / (32*4) rounded up.
	if g.X != 8 {
		t.Fatalf("grid x = %d, want 8", g.X)
	}

	g, err = GridFor(ProblemSize{X: 1000}, c, []string{"block_size_x*tile_size"}, nil)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g.X != 8 {
		t.Fatalf("grid x = %d, want 8", g.X)
	}
}

func TestGridForErrors(t *testing.T) {
	t.Parallel()

	c := configOf(t, "block_size_x", 32)

	if _, err := GridFor(ProblemSize{X: 64}, c, []string{"missing_param"}, nil); err == nil {
		t.Fatal("expected error for unknown divisor identifier")
	}
	_, err := GridFor(ProblemSize{X: 64}, c, []string{"block_size_x-32"}, nil)
	if err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Fatalf("expected positive-divisor error, got %v", err)
	}
}

func TestProblemSizeNormalize(t *testing.T) {
	t.Parallel()

	g, err := GridFor(ProblemSize{X: 10}, Config{}, nil, nil)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if g != (Grid{10, 1}) {
		t.Fatalf("grid = %v, want (10, 1)", g)
	}
}
