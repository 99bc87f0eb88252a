//go:build !cgo || !unix

package device

import (
	"errors"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const hostccEnabled = false

var errHostCCUnavailable = errors.New("c backend not available in this build (requires cgo on a unix platform)")

func openHostCC(index int) (tuner.Device, error) {
	return nil, errHostCCUnavailable
}
