package tuner

import "fmt"

// DefaultTolerance is the absolute tolerance used when comparing kernel
// output against the expected answer.
const DefaultTolerance = 1e-6

// verifyConfig checks kernel output against the expected answer. Every
// answered buffer is zeroed first so stale results from earlier launches
// cannot pass as correct, then the kernel runs once and each answered buffer
// is copied back and compared element-wise.
func verifyConfig(dev Device, k Kernel, staged []any, args Args, answer []any, block Dim3, grid Grid, instance string) error {
	for i, want := range answer {
		if want == nil {
			continue
		}
		if err := dev.Zero(staged[i]); err != nil {
			return fmt.Errorf("zero argument %d: %w", i, err)
		}
	}
	if err := dev.Launch(k, staged, block, grid); err != nil {
		return err
	}
	for i, want := range answer {
		if want == nil {
			continue
		}
		got := newHostLike(args[i])
		if err := dev.CopyToHost(got, staged[i]); err != nil {
			return fmt.Errorf("copy argument %d: %w", i, err)
		}
		if err := compareArg(got, want, instance, i); err != nil {
			return err
		}
	}
	return nil
}

// compareArg compares a copied-back buffer against its expected values with
// absolute tolerance. NaN never matches anything.
func compareArg(got, want any, instance string, arg int) error {
	n, _ := sliceLen(want)
	for i := 0; i < n; i++ {
		g := elemFloat(got, i)
		w := elemFloat(want, i)
		d := g - w
		if d < 0 {
			d = -d
		}
		if !(d <= DefaultTolerance) {
			return &VerifyError{Kernel: instance, Arg: arg, Index: i, Got: g, Want: w}
		}
	}
	return nil
}
