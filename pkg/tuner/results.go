package tuner

import "slices"

// Result is one measured configuration.
type Result struct {
	Config Config
	// TimeMS is the robust average kernel runtime in milliseconds.
	TimeMS float64
}

// Results is an insertion-ordered table of measured configurations, keyed by
// configuration identity. Configurations that were skipped or pruned never
// appear in it.
type Results struct {
	entries []Result
	index   map[string]int
}

func newResults() *Results {
	return &Results{index: make(map[string]int)}
}

func (r *Results) add(res Result) {
	key := res.Config.Instance()
	if i, ok := r.index[key]; ok {
		r.entries[i] = res
		return
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, res)
}

// Len returns the number of measured configurations.
func (r *Results) Len() int { return len(r.entries) }

// All returns the measured configurations in insertion order.
func (r *Results) All() []Result { return slices.Clone(r.entries) }

// Lookup returns the result recorded for a configuration identity.
func (r *Results) Lookup(instance string) (Result, bool) {
	i, ok := r.index[instance]
	if !ok {
		return Result{}, false
	}
	return r.entries[i], true
}

// Best returns the configuration with the lowest measured time. Ties keep
// the earliest entry. The second return is false when the table is empty.
func (r *Results) Best() (Result, bool) {
	if len(r.entries) == 0 {
		return Result{}, false
	}
	best := r.entries[0]
	for _, e := range r.entries[1:] {
		if e.TimeMS < best.TimeMS {
			best = e
		}
	}
	return best, true
}
