package device

import (
	"strings"
	"testing"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want tuner.Lang
	}{
		{"", Auto},
		{"auto", Auto},
		{"cuda", tuner.LangCUDA},
		{"CUDA", tuner.LangCUDA},
		{"  OpenCL  ", tuner.LangOpenCL},
		{"c", tuner.LangC},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeUnknown(t *testing.T) {
	t.Parallel()

	if _, err := Normalize("fortran"); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestOpenUnknownLanguage(t *testing.T) {
	t.Parallel()

	if _, err := Open(tuner.Lang("fortran"), 0); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestOpenAutoRejected(t *testing.T) {
	t.Parallel()

	// Auto must be resolved to a concrete language before Open.
	if _, err := Open(Auto, 0); err == nil {
		t.Fatal("expected error for auto language")
	}
}

func TestAvailableListsKnownBackends(t *testing.T) {
	t.Parallel()

	got := Available()
	if got == "" {
		t.Fatal("Available returned an empty string")
	}
	for _, entry := range strings.Split(got, ",") {
		switch entry {
		case "c", "opencl", "cuda", "none":
		default:
			t.Fatalf("unexpected backend entry %q in %q", entry, got)
		}
	}
}
