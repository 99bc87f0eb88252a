package tuner

import "slices"

// DefaultIterations is the number of benchmark samples taken per
// configuration when Options.Iterations is zero.
const DefaultIterations = 7

// robustMean averages samples after dropping the lowest and the highest
// one. Fewer than three samples average as-is.
func robustMean(samples []float64) float64 {
	s := slices.Clone(samples)
	slices.Sort(s)
	if len(s) >= 3 {
		s = s[1 : len(s)-1]
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
