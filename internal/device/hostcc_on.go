//go:build cgo && unix

package device

import (
	"github.com/anantzoid/kernel-tuner/internal/device/hostcc"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const hostccEnabled = true

func openHostCC(index int) (tuner.Device, error) {
	return hostcc.Open(index)
}
