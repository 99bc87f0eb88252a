// Package device opens tuner.Device backends by kernel language.
//
// Backend availability is decided at build time: the C backend needs cgo
// on a unix platform, while the OpenCL and CUDA backends are opt-in via
// the "opencl" and "cuda" build tags. Open reports a plain error for
// backends that are not part of the current build.
package device

import (
	"fmt"
	"strings"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

// Auto selects the language by inspecting the kernel source.
const Auto = tuner.Lang("auto")

// Normalize canonicalizes a language name from a flag or job file.
// An empty name means Auto.
func Normalize(name string) (tuner.Lang, error) {
	lang := tuner.Lang(strings.ToLower(strings.TrimSpace(name)))
	switch lang {
	case "":
		return Auto, nil
	case Auto, tuner.LangCUDA, tuner.LangOpenCL, tuner.LangC:
		return lang, nil
	default:
		return "", fmt.Errorf("unknown language %q (expected auto, cuda, opencl, or c)", name)
	}
}

// Open returns the device backend for lang. The index selects among
// multiple devices of the same kind and is backend-specific.
func Open(lang tuner.Lang, index int) (tuner.Device, error) {
	switch lang {
	case tuner.LangCUDA:
		return openCUDA(index)
	case tuner.LangOpenCL:
		return openOpenCL(index)
	case tuner.LangC:
		return openHostCC(index)
	default:
		return nil, fmt.Errorf("no device backend for language %q", lang)
	}
}

// Available returns a comma-separated list of backends in this build.
func Available() string {
	var entries []string
	if hostccEnabled {
		entries = append(entries, string(tuner.LangC))
	}
	if openclEnabled {
		entries = append(entries, string(tuner.LangOpenCL))
	}
	if cudaEnabled {
		entries = append(entries, string(tuner.LangCUDA))
	}
	if len(entries) == 0 {
		return "none"
	}
	return strings.Join(entries, ",")
}
