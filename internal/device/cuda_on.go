//go:build cuda

package device

import (
	"github.com/anantzoid/kernel-tuner/internal/device/cuda"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const cudaEnabled = true

func openCUDA(index int) (tuner.Device, error) {
	return cuda.Open(index)
}
