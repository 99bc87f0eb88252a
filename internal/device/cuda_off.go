//go:build !cuda

package device

import (
	"errors"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const cudaEnabled = false

var errCUDAUnavailable = errors.New("cuda backend not available in this build (build with -tags cuda)")

func openCUDA(index int) (tuner.Device, error) {
	return nil, errCUDAUnavailable
}
