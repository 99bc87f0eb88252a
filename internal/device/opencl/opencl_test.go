//go:build opencl

package opencl

import (
	"errors"
	"strings"
	"testing"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const vaddSrc = `
__kernel void vadd(__global float *c, __global const float *a, __global const float *b, const int n) {
	int i = get_global_id(0);
	if (i < n) {
		c[i] = a[i] + b[i];
	}
}
`

func TestErrorNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code int32
		want string
	}{
		{-5, "CL_OUT_OF_RESOURCES"},
		{-11, "CL_BUILD_PROGRAM_FAILURE"},
		{-54, "CL_INVALID_WORK_GROUP_SIZE"},
		{-999, "CL_ERROR_-999"},
	}
	for _, tc := range cases {
		if got := clErrorName(tc.code); got != tc.want {
			t.Fatalf("clErrorName(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := Open(0)
	if err != nil {
		t.Skipf("no opencl platform available: %v", err)
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
		b[i] = float32(3 * i)
	}
	staged, err := d.StageArgs(tuner.Args{make([]float32, n), a, b, int32(n)})
	if err != nil {
		t.Fatalf("StageArgs: %v", err)
	}
	return staged, a, b
}

func TestCompileAndLaunchVectorAdd(t *testing.T) {
	d := newTestDevice(t)
	const n = 64
	staged, a, b := stageVadd(t, d, n)

	k, err := d.Compile("vadd", vaddSrc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := d.Launch(k, staged, tuner.Dim3{X: n, Y: 1, Z: 1}, tuner.Grid{X: 1, Y: 1}); err != nil {
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

func TestBenchmarkCollectsProfiledTimes(t *testing.T) {
	d := newTestDevice(t)
	const n = 64
	staged, _, _ := stageVadd(t, d, n)

	k, err := d.Compile("vadd", vaddSrc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	samples, err := d.Benchmark(k, staged, tuner.Dim3{X: n, Y: 1, Z: 1}, tuner.Grid{X: 1, Y: 1}, 5)
	if err != nil {
		t.Fatalf("Benchmark: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(samples))
	}
	for i, s := range samples {
		if s < 0 {
			t.Fatalf("sample %d = %v, want non-negative profiled time", i, s)
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

func TestCompileErrorCarriesBuildLog(t *testing.T) {
	d := newTestDevice(t)

	_, err := d.Compile("broken", "__kernel void broken() { this does not parse }")
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ce *tuner.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a CompileError", err)
	}
	if ce.Detail == "" {
		t.Fatal("compile error has no build log")
	}
}

func TestCompileUnknownKernelName(t *testing.T) {
	d := newTestDevice(t)

	_, err := d.Compile("missing", vaddSrc)
	if err == nil {
		t.Fatal("expected error for unknown kernel name")
	}
	var ce *tuner.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a CompileError", err)
	}
}

func TestDeviceIdentity(t *testing.T) {
	d := newTestDevice(t)

	if !strings.HasPrefix(d.Name(), "opencl/") {
		t.Fatalf("Name() = %q, want opencl/<device>", d.Name())
	}
	if d.MaxThreads() < 1 {
		t.Fatalf("MaxThreads() = %d, want at least 1", d.MaxThreads())
	}
}
