//go:build !opencl

package device

import (
	"errors"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const openclEnabled = false

var errOpenCLUnavailable = errors.New("opencl backend not available in this build (build with -tags opencl)")

func openOpenCL(index int) (tuner.Device, error) {
	return nil, errOpenCLUnavailable
}
