package tuner

import (
	"math"
	"testing"
)

func TestRobustMeanDropsExtremes(t *testing.T) {
	t.Parallel()

	got := robustMean([]float64{5, 1, 9, 3, 4, 2, 8})
	if math.Abs(got-4.4) > 1e-12 {
		t.Fatalf("robustMean = %g, want 4.4", got)
	}
}

func TestRobustMeanSmallSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		samples []float64
		want    float64
	}{
		{[]float64{3}, 3},
		{[]float64{2, 4}, 3},
		{[]float64{1, 2, 9}, 2},
		{[]float64{7, 7, 7, 7}, 7},
	}
	for _, tt := range tests {
		if got := robustMean(tt.samples); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("robustMean(%v) = %g, want %g", tt.samples, got, tt.want)
		}
	}
}

func TestRobustMeanDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	samples := []float64{9, 1, 5}
	robustMean(samples)
	if samples[0] != 9 || samples[1] != 1 || samples[2] != 5 {
		t.Fatalf("input mutated: %v", samples)
	}
}
