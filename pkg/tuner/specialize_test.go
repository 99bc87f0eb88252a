package tuner

import (
	"strings"
	"testing"
)

func TestSpecializeSourceDefineOrder(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 128)
	mustAdd(t, &d, "tile_size", 2)
	c, err := d.Single()
	if err != nil {
		t.Fatalf("Single: %v", err)
	}

	src := "__global__ void vadd(float *a) {}\n"
	got := SpecializeSource(src, c, Grid{X: 8, Y: 1})
	want := "#define grid_size_x 8\n" +
		"#define grid_size_y 1\n" +
		"#define block_size_x 128\n" +
		"#define tile_size 2\n" +
		src
	if got != want {
		t.Fatalf("specialized source:\n%s\nwant:\n%s", got, want)
	}
}

func TestInstanceName(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 128)
	mustAdd(t, &d, "tile_size", 2)
	c, _ := d.Single()

	if got := InstanceName("vadd", c); got != "vadd_128_2" {
		t.Fatalf("InstanceName = %q, want vadd_128_2", got)
	}
}

func TestBuildSourceRenamesKernel(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 64)
	c, _ := d.Single()

	req := Request{
		KernelName: "vadd",
		Source:     "__global__ void vadd(float *a, float *b) { /* vadd body */ }",
	}
	name, source := buildSource(req, c, Grid{X: 4, Y: 1})
	if name != "vadd_64" {
		t.Fatalf("name = %q, want vadd_64", name)
	}
	if strings.Contains(source, "void vadd(") {
		t.Fatalf("base kernel name survived the rename:\n%s", source)
	}
	if !strings.Contains(source, "void vadd_64(") {
		t.Fatalf("renamed entry point missing:\n%s", source)
	}
	// Text substitution rewrites every occurrence, comments included.
	if !strings.Contains(source, "vadd_64 body") {
		t.Fatalf("expected comment occurrence to be rewritten:\n%s", source)
	}
	if !strings.Contains(source, "#define block_size_x 64\n") {
		t.Fatalf("missing define:\n%s", source)
	}
}

func TestInstanceNamesDistinctAcrossConfigs(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 32, 64, 128)

	seen := map[string]bool{}
	for c := range d.Configs() {
		name := InstanceName("conv", c)
		if seen[name] {
			t.Fatalf("duplicate instance name %q", name)
		}
		seen[name] = true
	}
	if len(seen) != 3 {
		t.Fatalf("got %d names, want 3", len(seen))
	}
}
