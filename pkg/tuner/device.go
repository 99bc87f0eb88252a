package tuner

// Kernel is an opaque handle to a compiled kernel. Its concrete type belongs
// to the Device that produced it and must not be interpreted by callers.
type Kernel any

// Device abstracts one compute device that can compile and launch kernels.
// Implementations are not safe for concurrent use; a sweep owns its device
// for the duration of the run.
type Device interface {
	// Name identifies the device for logs and reports.
	Name() string

	// MaxThreads returns the largest thread-block size the device can
	// launch. Zero or negative means unlimited.
	MaxThreads() int64

	// StageArgs uploads the arguments to the device and returns one handle
	// per argument, in order. Slice arguments become device buffers
	// initialized with the host contents; scalars pass through unchanged.
	StageArgs(args Args) ([]any, error)

	// Compile builds source into a kernel whose entry point is name.
	// Configuration-dependent failures surface as *CompileError.
	Compile(name, source string) (Kernel, error)

	// Launch runs the kernel once over the given geometry and waits for it
	// to finish. Failures surface as *LaunchError.
	Launch(k Kernel, args []any, block Dim3, grid Grid) error

	// Benchmark runs the kernel iterations times and returns one runtime
	// sample in milliseconds per iteration.
	Benchmark(k Kernel, args []any, block Dim3, grid Grid, iterations int) ([]float64, error)

	// CopyToHost copies a staged device buffer back into dst, a host slice
	// of the type and length the buffer was staged from.
	CopyToHost(dst, src any) error

	// Zero overwrites a staged device buffer with zero bytes.
	Zero(buf any) error

	// Close releases the device together with every buffer and kernel it
	// handed out.
	Close() error
}

// ConstantMemorySetter is implemented by devices that can copy named host
// arrays into a kernel's constant memory before launch. Devices without the
// capability simply do not implement it; a sweep that needs it fails fast.
type ConstantMemorySetter interface {
	SetConstantMemory(k Kernel, args map[string]any) error
}
