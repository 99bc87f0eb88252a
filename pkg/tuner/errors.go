package tuner

import (
	"errors"
	"fmt"
	"strings"
)

// CompileError reports a kernel compilation failure. Detail carries the
// compiler output when the backend can recover it.
type CompileError struct {
	Kernel string
	Detail string
	Err    error
}

func (e *CompileError) Error() string {
	msg := "compile " + e.Kernel
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// LaunchError reports a failed kernel launch or benchmark run.
type LaunchError struct {
	Kernel string
	Detail string
	Err    error
}

func (e *LaunchError) Error() string {
	msg := "launch " + e.Kernel
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *LaunchError) Unwrap() error { return e.Err }

// VerifyError reports kernel output that does not match the expected answer.
type VerifyError struct {
	Kernel string
	Arg    int
	Index  int
	Got    float64
	Want   float64
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: argument %d element %d: got %g, want %g",
		e.Kernel, e.Arg, e.Index, e.Got, e.Want)
}

// Phrases that mark a failure as caused by the configuration exceeding
// device resources. Such configurations are skipped; anything else aborts
// the sweep.
var (
	compileSkipPhrases = []string{
		"uses too much shared data",
	}
	launchSkipPhrases = []string{
		"too many resources requested for launch",
		"OUT_OF_RESOURCES",
	}
)

// skippableCompile reports whether err is a compilation failure caused by the
// configuration exceeding device resources rather than by broken source.
func skippableCompile(err error) bool {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return false
	}
	return containsAny(ce.Error(), compileSkipPhrases)
}

// skippableLaunch reports whether err is a launch failure caused by the
// configuration demanding more resources than the device has.
func skippableLaunch(err error) bool {
	var le *LaunchError
	if !errors.As(err, &le) {
		return false
	}
	return containsAny(le.Error(), launchSkipPhrases)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
