package tuner

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSkippableCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "shared data in detail",
			err:  &CompileError{Kernel: "vadd_512", Detail: "ptxas error: entry function uses too much shared data"},
			want: true,
		},
		{
			name: "wrapped compile error",
			err:  fmt.Errorf("configuration 512: %w", &CompileError{Kernel: "vadd_512", Detail: "uses too much shared data"}),
			want: true,
		},
		{
			name: "syntax error is fatal",
			err:  &CompileError{Kernel: "vadd_512", Detail: "error: expected ';' after expression"},
			want: false,
		},
		{
			name: "plain error is fatal",
			err:  errors.New("uses too much shared data"),
			want: false,
		},
	}
	for _, tt := range tests {
		if got := skippableCompile(tt.err); got != tt.want {
			t.Fatalf("%s: skippableCompile = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSkippableLaunch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "too many resources",
			err:  &LaunchError{Kernel: "vadd_512", Detail: "too many resources requested for launch"},
			want: true,
		},
		{
			name: "out of resources",
			err:  &LaunchError{Kernel: "vadd_512", Err: errors.New("clEnqueueNDRangeKernel: OUT_OF_RESOURCES")},
			want: true,
		},
		{
			name: "illegal address is fatal",
			err:  &LaunchError{Kernel: "vadd_512", Detail: "an illegal memory access was encountered"},
			want: false,
		},
		{
			name: "verify error is fatal",
			err:  &VerifyError{Kernel: "vadd_512", Arg: 2, Index: 0, Got: 1, Want: 2},
			want: false,
		},
	}
	for _, tt := range tests {
		if got := skippableLaunch(tt.err); got != tt.want {
			t.Fatalf("%s: skippableLaunch = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	ce := &CompileError{Kernel: "conv_16", Err: errors.New("nvrtc failed"), Detail: "log text"}
	for _, want := range []string{"compile conv_16", "nvrtc failed", "log text"} {
		if !strings.Contains(ce.Error(), want) {
			t.Fatalf("CompileError message %q missing %q", ce.Error(), want)
		}
	}
	if !errors.Is(ce, ce.Err) {
		t.Fatal("CompileError does not unwrap to its cause")
	}

	le := &LaunchError{Kernel: "conv_16", Detail: "launch timeout"}
	if !strings.Contains(le.Error(), "launch conv_16") || !strings.Contains(le.Error(), "launch timeout") {
		t.Fatalf("LaunchError message %q", le.Error())
	}

	ve := &VerifyError{Kernel: "conv_16", Arg: 1, Index: 42, Got: 0, Want: 3}
	for _, want := range []string{"verify conv_16", "argument 1", "element 42"} {
		if !strings.Contains(ve.Error(), want) {
			t.Fatalf("VerifyError message %q missing %q", ve.Error(), want)
		}
	}
}
