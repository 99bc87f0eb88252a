package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/anantzoid/kernel-tuner/internal/device"
)

type output struct {
	GoVersion string `json:"go_version"`
	GoOS      string `json:"go_os"`
	GoArch    string `json:"go_arch"`
	CPUs      int    `json:"cpus"`
	Backends  string `json:"backends"`
	CC        string `json:"cc,omitempty"`
}

func main() {
	out := output{
		GoVersion: runtime.Version(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		Backends:  device.Available(),
	}

	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	if path, err := exec.LookPath(cc); err == nil {
		out.CC = path
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
