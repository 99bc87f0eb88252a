package tuner

import "fmt"

// Args holds the kernel launch arguments in declaration order. Scalars pass
// through to the kernel by value; slices are staged into device buffers.
//
// Supported types: int32, uint32, int64, float32, float64 and dense slices of
// int32, uint32, float32, float64.
type Args []any

func (a Args) validate() error {
	for i, v := range a {
		switch v.(type) {
		case int32, uint32, int64, float32, float64:
		case []int32, []uint32, []float32, []float64:
		default:
			return fmt.Errorf("argument %d: unsupported type %T", i, v)
		}
	}
	return nil
}

// isSliceArg reports whether the argument is a buffer-backed slice.
func isSliceArg(v any) bool {
	switch v.(type) {
	case []int32, []uint32, []float32, []float64:
		return true
	}
	return false
}

// newHostLike allocates a fresh host slice with the type and length of v.
func newHostLike(v any) any {
	switch s := v.(type) {
	case []int32:
		return make([]int32, len(s))
	case []uint32:
		return make([]uint32, len(s))
	case []float32:
		return make([]float32, len(s))
	case []float64:
		return make([]float64, len(s))
	}
	return nil
}

// validateAnswer checks an expected-answer list against the argument list.
// A nil answer disables verification; a nil entry leaves that argument
// unchecked. Non-nil entries must be slices matching the corresponding
// argument's element type and length.
func validateAnswer(args Args, answer []any) error {
	if answer == nil {
		return nil
	}
	if len(answer) != len(args) {
		return fmt.Errorf("answer has %d entries, want %d to match the arguments", len(answer), len(args))
	}
	for i, want := range answer {
		if want == nil {
			continue
		}
		wn, ok := sliceLen(want)
		if !ok {
			return fmt.Errorf("answer %d: unsupported type %T, must be a slice or nil", i, want)
		}
		gn, ok := sliceLen(args[i])
		if !ok {
			return fmt.Errorf("answer %d: argument is a scalar %T, only slice arguments can be verified", i, args[i])
		}
		if !sameSliceType(want, args[i]) {
			return fmt.Errorf("answer %d: type %T does not match argument type %T", i, want, args[i])
		}
		if wn != gn {
			return fmt.Errorf("answer %d: length %d does not match argument length %d", i, wn, gn)
		}
	}
	return nil
}

func sameSliceType(a, b any) bool {
	switch a.(type) {
	case []int32:
		_, ok := b.([]int32)
		return ok
	case []uint32:
		_, ok := b.([]uint32)
		return ok
	case []float32:
		_, ok := b.([]float32)
		return ok
	case []float64:
		_, ok := b.([]float64)
		return ok
	}
	return false
}

func sliceLen(v any) (int, bool) {
	switch s := v.(type) {
	case []int32:
		return len(s), true
	case []uint32:
		return len(s), true
	case []float32:
		return len(s), true
	case []float64:
		return len(s), true
	}
	return 0, false
}

// elemFloat returns element i of a supported slice as float64.
func elemFloat(v any, i int) float64 {
	switch s := v.(type) {
	case []int32:
		return float64(s[i])
	case []uint32:
		return float64(s[i])
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	}
	return 0
}
