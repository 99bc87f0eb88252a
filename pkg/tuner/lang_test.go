package tuner

import "testing"

func TestDetectLang(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		want   Lang
	}{
		{"__global__ void k(float *a) {}", LangCUDA},
		{"__kernel void k(__global float *a) {}", LangOpenCL},
		{"float k(float *a, int n) { return 0.0f; }", LangC},
		{"", LangC},
		// The CUDA marker wins when both appear.
		{"__global__ void k() {} // __kernel", LangCUDA},
	}
	for _, tt := range tests {
		if got := DetectLang(tt.source); got != tt.want {
			t.Fatalf("DetectLang(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}
