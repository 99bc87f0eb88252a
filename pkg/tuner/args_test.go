package tuner

import (
	"strings"
	"testing"
)

func TestArgsValidate(t *testing.T) {
	t.Parallel()

	ok := Args{int32(1), uint32(2), int64(3), float32(4), float64(5),
		[]int32{1}, []uint32{2}, []float32{3}, []float64{4}}
	if err := ok.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := []Args{
		{int(1)},
		{"text"},
		{[]int64{1}},
		{[][]float32{{1}}},
	}
	for _, args := range bad {
		if err := args.validate(); err == nil {
			t.Fatalf("validate(%T) should fail", args[0])
		}
	}
}

func TestValidateAnswer(t *testing.T) {
	t.Parallel()

	args := Args{make([]float32, 4), int32(4)}

	if err := validateAnswer(args, nil); err != nil {
		t.Fatalf("nil answer: %v", err)
	}
	if err := validateAnswer(args, []any{[]float32{1, 2, 3, 4}, nil}); err != nil {
		t.Fatalf("valid answer: %v", err)
	}

	tests := []struct {
		name   string
		answer []any
		want   string
	}{
		{"length mismatch", []any{nil}, "answer has 1 entries"},
		{"scalar entry", []any{float32(1), nil}, "must be a slice or nil"},
		{"answer for scalar arg", []any{nil, []int32{4}}, "argument is a scalar"},
		{"type mismatch", []any{[]float64{1, 2, 3, 4}, nil}, "does not match argument type"},
		{"slice length mismatch", []any{[]float32{1, 2}, nil}, "does not match argument length"},
	}
	for _, tt := range tests {
		err := validateAnswer(args, tt.answer)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want substring %q", tt.name, err, tt.want)
		}
	}
}

func TestNewHostLike(t *testing.T) {
	t.Parallel()

	src := []float32{1, 2, 3}
	got, ok := newHostLike(src).([]float32)
	if !ok || len(got) != 3 {
		t.Fatalf("newHostLike = %#v", got)
	}
	for _, v := range got {
		if v != 0 {
			t.Fatalf("newHostLike not zeroed: %v", got)
		}
	}
}
