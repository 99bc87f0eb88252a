//go:build opencl

package device

import (
	"github.com/anantzoid/kernel-tuner/internal/device/opencl"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const openclEnabled = true

func openOpenCL(index int) (tuner.Device, error) {
	return opencl.Open(index)
}
