package tuner

import "strings"

// Lang identifies the kernel source language.
type Lang string

const (
	LangCUDA   Lang = "cuda"
	LangOpenCL Lang = "opencl"
	LangC      Lang = "c"
)

// DetectLang guesses the kernel language from markers in the source text:
// "__global__" means CUDA, "__kernel" means OpenCL, anything else is treated
// as plain C.
func DetectLang(source string) Lang {
	if strings.Contains(source, "__global__") {
		return LangCUDA
	}
	if strings.Contains(source, "__kernel") {
		return LangOpenCL
	}
	return LangC
}
