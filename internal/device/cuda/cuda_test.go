//go:build cuda

package cuda

import (
	"errors"
	"strings"
	"testing"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const vaddSrc = `
extern "C" __global__ void vadd(float *c, const float *a, const float *b, int n) {
	int i = blockIdx.x * blockDim.x + threadIdx.x;
	if (i < n) {
		c[i] = a[i] + b[i];
	}
}
`

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := Open(0)
	if err != nil {
		t.Skipf("no cuda device available: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return d
}

func stageVadd(t *testing.T, d *Device, n int) ([]any, []float32, []float32) {
	t.Helper()
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = float32(i)
		b[i] = float32(5 * i)
	}
	staged, err := d.StageArgs(tuner.Args{make([]float32, n), a, b, int32(n)})
	if err != nil {
		t.Fatalf("StageArgs: %v", err)
	}
	return staged, a, b
}

func TestCompileAndLaunchVectorAdd(t *testing.T) {
	d := newTestDevice(t)
	const n = 256
	staged, a, b := stageVadd(t, d, n)

	k, err := d.Compile("vadd", vaddSrc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := d.Launch(k, staged, tuner.Dim3{X: 64, Y: 1, Z: 1}, tuner.Grid{X: 4, Y: 1}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	got := make([]float32, n)
	if err := d.CopyToHost(got, staged[0]); err != nil {
		t.Fatalf("CopyToHost: %v", err)
	}
	for i := range got {
		if got[i] != a[i]+b[i] {
			t.Fatalf("out[%d] = %v, want %v", i, got[i], a[i]+b[i])
		}
	}
}

func TestBenchmarkCollectsEventTimes(t *testing.T) {
	d := newTestDevice(t)
	const n = 256
	staged, _, _ := stageVadd(t, d, n)

	k, err := d.Compile("vadd", vaddSrc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	samples, err := d.Benchmark(k, staged, tuner.Dim3{X: 64, Y: 1, Z: 1}, tuner.Grid{X: 4, Y: 1}, 7)
	if err != nil {
		t.Fatalf("Benchmark: %v", err)
	}
	if len(samples) != 7 {
		t.Fatalf("got %d samples, want 7", len(samples))
	}
	for i, s := range samples {
		if s < 0 {
			t.Fatalf("sample %d = %v, want non-negative event time", i, s)
		}
	}
}

func TestZeroClearsBuffer(t *testing.T) {
	d := newTestDevice(t)
	staged, _, _ := stageVadd(t, d, 8)

	if err := d.Zero(staged[1]); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	got := make([]float32, 8)
	if err := d.CopyToHost(got, staged[1]); err != nil {
		t.Fatalf("CopyToHost: %v", err)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("buffer[%d] = %v after Zero, want 0", i, v)
		}
	}
}

func TestCompileErrorCarriesCompilerLog(t *testing.T) {
	d := newTestDevice(t)

	_, err := d.Compile("broken", "__global__ void broken() { this does not parse }")
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ce *tuner.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a CompileError", err)
	}
	if ce.Detail == "" {
		t.Fatal("compile error has no compiler log")
	}
}

func TestConstantMemoryReachesKernel(t *testing.T) {
	d := newTestDevice(t)

	const src = `
__constant__ float factors[4];
extern "C" __global__ void scale(float *out, const float *in, int n) {
	int i = blockIdx.x * blockDim.x + threadIdx.x;
	if (i < n) {
		out[i] = in[i] * factors[i % 4];
	}
}
`
	const n = 16
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(i + 1)
	}
	staged, err := d.StageArgs(tuner.Args{make([]float32, n), in, int32(n)})
	if err != nil {
		t.Fatalf("StageArgs: %v", err)
	}
	k, err := d.Compile("scale", src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	factors := []float32{1, 2, 3, 4}
	if err := d.SetConstantMemory(k, map[string]any{"factors": factors}); err != nil {
		t.Fatalf("SetConstantMemory: %v", err)
	}
	if err := d.Launch(k, staged, tuner.Dim3{X: n, Y: 1, Z: 1}, tuner.Grid{X: 1, Y: 1}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	got := make([]float32, n)
	if err := d.CopyToHost(got, staged[0]); err != nil {
		t.Fatalf("CopyToHost: %v", err)
	}
	for i := range got {
		want := in[i] * factors[i%4]
		if got[i] != want {
			t.Fatalf("out[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestConstantMemoryUnknownSymbol(t *testing.T) {
	d := newTestDevice(t)
	stageVadd(t, d, 8)

	k, err := d.Compile("vadd", vaddSrc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := d.SetConstantMemory(k, map[string]any{"missing": []float32{1}}); err == nil {
		t.Fatal("expected error for unknown constant symbol")
	}
}

func TestDeviceIdentity(t *testing.T) {
	d := newTestDevice(t)

	if !strings.HasPrefix(d.Name(), "cuda/") {
		t.Fatalf("Name() = %q, want cuda/<device>", d.Name())
	}
	if d.MaxThreads() < 1 {
		t.Fatalf("MaxThreads() = %d, want at least 1", d.MaxThreads())
	}
}
