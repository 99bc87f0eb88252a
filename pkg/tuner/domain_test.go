package tuner

import (
	"slices"
	"strings"
	"testing"
)

func TestDomainAddValidation(t *testing.T) {
	t.Parallel()

	var d Domain
	if err := d.Add("", 1); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := d.Add("block_size_x"); err == nil {
		t.Fatal("expected error for missing values")
	}
	if err := d.Add("block_size_x", 32, 64); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Add("block_size_x", 128); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestDomainSize(t *testing.T) {
	t.Parallel()

	var d Domain
	if got := d.Size(); got != 1 {
		t.Fatalf("empty domain size = %d, want 1", got)
	}
	mustAdd(t, &d, "a", 1, 2, 3)
	mustAdd(t, &d, "b", 1, 2)
	if got := d.Size(); got != 6 {
		t.Fatalf("size = %d, want 6", got)
	}
}

func TestConfigsOrderLastVariesFastest(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "a", 1, 2)
	mustAdd(t, &d, "b", 3, 4)
	mustAdd(t, &d, "c", 5, 6)

	want := []string{
		"1_3_5", "1_3_6", "1_4_5", "1_4_6",
		"2_3_5", "2_3_6", "2_4_5", "2_4_6",
	}
	var got []string
	for c := range d.Configs() {
		got = append(got, c.Instance())
	}
	if !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestConfigsRestartable(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "a", 1, 2)
	mustAdd(t, &d, "b", 3, 4)

	first := collectInstances(&d)
	second := collectInstances(&d)
	if !slices.Equal(first, second) {
		t.Fatalf("second pass %v differs from first %v", second, first)
	}
	if len(first) != 4 {
		t.Fatalf("len = %d, want 4", len(first))
	}
}

func TestConfigsEmptyDomainYieldsOneConfig(t *testing.T) {
	t.Parallel()

	var d Domain
	var got []Config
	for c := range d.Configs() {
		got = append(got, c)
	}
	if len(got) != 1 {
		t.Fatalf("got %d configs, want 1", len(got))
	}
	if got[0].Len() != 0 || got[0].Instance() != "" {
		t.Fatalf("unexpected config %q", got[0].Instance())
	}
}

func TestConfigValueAndString(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 128)
	mustAdd(t, &d, "tile_size", 4)
	c, err := d.Single()
	if err != nil {
		t.Fatalf("Single: %v", err)
	}

	if v, ok := c.Value("block_size_x"); !ok || v != 128 {
		t.Fatalf("Value(block_size_x) = %d, %v", v, ok)
	}
	if _, ok := c.Value("missing"); ok {
		t.Fatal("Value(missing) should not resolve")
	}
	if got := c.Instance(); got != "128_4" {
		t.Fatalf("Instance = %q, want 128_4", got)
	}
	if got := c.String(); got != "block_size_x=128, tile_size=4" {
		t.Fatalf("String = %q", got)
	}
	if got := c.Names(); !slices.Equal(got, []string{"block_size_x", "tile_size"}) {
		t.Fatalf("Names = %v", got)
	}
}

func TestSingleRequiresOneValuePerParameter(t *testing.T) {
	t.Parallel()

	var d Domain
	mustAdd(t, &d, "block_size_x", 32, 64)
	if _, err := d.Single(); err == nil {
		t.Fatal("expected error for multi-valued parameter")
	}
}

func mustAdd(t *testing.T, d *Domain, name string, values ...int64) {
	t.Helper()
	if err := d.Add(name, values...); err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
}

func collectInstances(d *Domain) []string {
	var out []string
	for c := range d.Configs() {
		out = append(out, c.Instance())
	}
	return out
}
