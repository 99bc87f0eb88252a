//go:build cgo && unix

// Package hostcc benchmarks C kernels in the host process.
//
// Kernel source is compiled with the system C compiler into a shared
// object, loaded with dlopen, and entered through a generated trampoline
// that unpacks a void** argument vector. A kernel times itself and reports
// the elapsed milliseconds as its float return value; block and grid
// dimensions reach the source only through the prepended defines.
package hostcc

/*
#cgo linux LDFLAGS: -ldl

#include <stdlib.h>
#include <string.h>
#include <dlfcn.h>

static double ktCallKernel(void *fn, void **argv) {
	return ((double (*)(void **))fn)(argv);
}
*/
import "C"

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// Device compiles and runs kernels with the host C compiler. It is not
// safe for concurrent use.
type Device struct {
	cc      string
	dir     string
	seq     int
	spec    []argSpec
	staged  bool
	buffers []*buffer
	kernels []*kernel
}

type buffer struct {
	ptr   unsafe.Pointer
	bytes int
	n     int
	kind  elemKind
}

type kernel struct {
	name   string
	handle unsafe.Pointer
	fn     unsafe.Pointer
}

// Open prepares a host device backed by $CC, or cc when unset. The host
// has a single device, so only index 0 is accepted.
func Open(index int) (*Device, error) {
	if index != 0 {
		return nil, fmt.Errorf("c backend has a single device, got index %d", index)
	}
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	path, err := exec.LookPath(cc)
	if err != nil {
		return nil, fmt.Errorf("no usable C compiler %q: %w", cc, err)
	}
	dir, err := os.MkdirTemp("", "kernel-tuner-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	return &Device{cc: path, dir: dir}, nil
}

func (d *Device) Name() string {
	return "c/" + filepath.Base(d.cc)
}

// MaxThreads reports no limit: thread counts only parameterize the source
// on the host.
func (d *Device) MaxThreads() int64 {
	return 0
}

// StageArgs copies slice arguments into C-allocated buffers so launches
// can hand their addresses to the kernel; scalars stage as themselves.
// Buffers live until Close. The recorded argument shape also drives
// trampoline generation, so arguments must be staged before compiling.
func (d *Device) StageArgs(args tuner.Args) ([]any, error) {
	staged := make([]any, len(args))
	spec := make([]argSpec, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case []int32:
			b, err := d.newBuffer(kindInt32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
			if err != nil {
				return nil, fmt.Errorf("staging argument %d: %w", i, err)
			}
			staged[i] = b
			spec[i] = argSpec{slice: true, kind: kindInt32}
		case []uint32:
			b, err := d.newBuffer(kindUint32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
			if err != nil {
				return nil, fmt.Errorf("staging argument %d: %w", i, err)
			}
			staged[i] = b
			spec[i] = argSpec{slice: true, kind: kindUint32}
		case []float32:
			b, err := d.newBuffer(kindFloat32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
			if err != nil {
				return nil, fmt.Errorf("staging argument %d: %w", i, err)
			}
			staged[i] = b
			spec[i] = argSpec{slice: true, kind: kindFloat32}
		case []float64:
			b, err := d.newBuffer(kindFloat64, len(v), unsafe.Pointer(unsafe.SliceData(v)))
			if err != nil {
				return nil, fmt.Errorf("staging argument %d: %w", i, err)
			}
			staged[i] = b
			spec[i] = argSpec{slice: true, kind: kindFloat64}
		case int32:
			staged[i] = v
			spec[i] = argSpec{kind: kindInt32}
		case uint32:
			staged[i] = v
			spec[i] = argSpec{kind: kindUint32}
		case int64:
			staged[i] = v
			spec[i] = argSpec{kind: kindInt64}
		case float32:
			staged[i] = v
			spec[i] = argSpec{kind: kindFloat32}
		case float64:
			staged[i] = v
			spec[i] = argSpec{kind: kindFloat64}
		default:
			return nil, fmt.Errorf("unsupported argument type %T at index %d", a, i)
		}
	}
	d.spec = spec
	d.staged = true
	return staged, nil
}

func (d *Device) newBuffer(kind elemKind, n int, src unsafe.Pointer) (*buffer, error) {
	bytes := n * kind.size()
	alloc := bytes
	if alloc == 0 {
		alloc = 1
	}
	ptr := C.malloc(C.size_t(alloc))
	if ptr == nil {
		return nil, fmt.Errorf("allocating %d bytes", alloc)
	}
	if bytes > 0 {
		C.memcpy(ptr, src, C.size_t(bytes))
	}
	b := &buffer{ptr: ptr, bytes: bytes, n: n, kind: kind}
	d.buffers = append(d.buffers, b)
	return b, nil
}

// Compile appends the trampoline for the staged argument shape to source,
// builds a shared object, and loads its entry point.
func (d *Device) Compile(name, source string) (tuner.Kernel, error) {
	if !d.staged {
		return nil, fmt.Errorf("arguments must be staged before compiling")
	}
	d.seq++
	base := fmt.Sprintf("%s_%d", name, d.seq)
	srcPath := filepath.Join(d.dir, base+".c")
	soPath := filepath.Join(d.dir, base+".so")
	full := source + trampoline(name, d.spec)
	if err := os.WriteFile(srcPath, []byte(full), 0o644); err != nil {
		return nil, fmt.Errorf("writing kernel source: %w", err)
	}
	out, err := exec.Command(d.cc, "-O2", "-fPIC", "-shared", "-o", soPath, srcPath, "-lm").CombinedOutput()
	if err != nil {
		return nil, &tuner.CompileError{Kernel: name, Detail: strings.TrimSpace(string(out)), Err: err}
	}

	cpath := C.CString(soPath)
	defer C.free(unsafe.Pointer(cpath))
	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		return nil, &tuner.CompileError{Kernel: name, Detail: dlerrString(), Err: fmt.Errorf("loading %s", soPath)}
	}
	sym := C.CString(launchPrefix + name)
	defer C.free(unsafe.Pointer(sym))
	fn := C.dlsym(handle, sym)
	if fn == nil {
		detail := dlerrString()
		C.dlclose(handle)
		return nil, &tuner.CompileError{Kernel: name, Detail: detail, Err: fmt.Errorf("resolving %s%s", launchPrefix, name)}
	}

	kern := &kernel{name: name, handle: handle, fn: fn}
	d.kernels = append(d.kernels, kern)
	return kern, nil
}

// Launch calls the kernel once. Geometry is baked into the compiled
// source, so block and grid are unused here.
func (d *Device) Launch(k tuner.Kernel, args []any, _ tuner.Dim3, _ tuner.Grid) error {
	kern, err := toKernel(k)
	if err != nil {
		return err
	}
	argv, err := d.buildArgv(args)
	if err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	defer C.free(argv)
	C.ktCallKernel(kern.fn, (*unsafe.Pointer)(argv))
	return nil
}

// Benchmark calls the kernel iterations times and collects the runtimes
// the kernel reports for itself.
func (d *Device) Benchmark(k tuner.Kernel, args []any, _ tuner.Dim3, _ tuner.Grid, iterations int) ([]float64, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	kern, err := toKernel(k)
	if err != nil {
		return nil, err
	}
	argv, err := d.buildArgv(args)
	if err != nil {
		return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	defer C.free(argv)
	samples := make([]float64, iterations)
	for i := range samples {
		samples[i] = float64(C.ktCallKernel(kern.fn, (*unsafe.Pointer)(argv)))
	}
	return samples, nil
}

// buildArgv lays out the void** argument vector in C memory: one pointer
// slot per argument, followed by an 8-byte slot per scalar value.
func (d *Device) buildArgv(staged []any) (unsafe.Pointer, error) {
	if len(staged) != len(d.spec) {
		return nil, fmt.Errorf("%d arguments staged, launch got %d", len(d.spec), len(staged))
	}
	n := len(staged)
	scalarOff := (n*ptrSize + 7) &^ 7
	total := scalarOff + n*8
	if total == 0 {
		total = 8
	}
	mem := C.malloc(C.size_t(total))
	if mem == nil {
		return nil, fmt.Errorf("allocating launch argument block")
	}
	slots := unsafe.Slice((*unsafe.Pointer)(mem), n)
	for i, a := range staged {
		slot := unsafe.Add(mem, scalarOff+i*8)
		switch v := a.(type) {
		case *buffer:
			slots[i] = v.ptr
		case int32:
			*(*int32)(slot) = v
			slots[i] = slot
		case uint32:
			*(*uint32)(slot) = v
			slots[i] = slot
		case int64:
			*(*int64)(slot) = v
			slots[i] = slot
		case float32:
			*(*float32)(slot) = v
			slots[i] = slot
		case float64:
			*(*float64)(slot) = v
			slots[i] = slot
		default:
			C.free(mem)
			return nil, fmt.Errorf("unsupported staged argument %T at index %d", a, i)
		}
	}
	return mem, nil
}

func (d *Device) CopyToHost(dst, src any) error {
	b, ok := src.(*buffer)
	if !ok {
		return fmt.Errorf("source %T was not staged by this device", src)
	}
	var (
		dstPtr unsafe.Pointer
		n      int
		kind   elemKind
	)
	switch v := dst.(type) {
	case []int32:
		dstPtr, n, kind = unsafe.Pointer(unsafe.SliceData(v)), len(v), kindInt32
	case []uint32:
		dstPtr, n, kind = unsafe.Pointer(unsafe.SliceData(v)), len(v), kindUint32
	case []float32:
		dstPtr, n, kind = unsafe.Pointer(unsafe.SliceData(v)), len(v), kindFloat32
	case []float64:
		dstPtr, n, kind = unsafe.Pointer(unsafe.SliceData(v)), len(v), kindFloat64
	default:
		return fmt.Errorf("unsupported destination type %T", dst)
	}
	if kind != b.kind || n != b.n {
		return fmt.Errorf("destination does not match staged buffer (%d elements)", b.n)
	}
	if b.bytes > 0 {
		C.memcpy(dstPtr, b.ptr, C.size_t(b.bytes))
	}
	return nil
}

func (d *Device) Zero(buf any) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("buffer %T was not staged by this device", buf)
	}
	if b.bytes > 0 {
		C.memset(b.ptr, 0, C.size_t(b.bytes))
	}
	return nil
}

func (d *Device) Close() error {
	var err error
	for _, k := range d.kernels {
		if k.handle == nil {
			continue
		}
		if rc := C.dlclose(k.handle); rc != 0 && err == nil {
			err = fmt.Errorf("unloading %s: %s", k.name, dlerrString())
		}
		k.handle = nil
		k.fn = nil
	}
	d.kernels = nil
	for _, b := range d.buffers {
		if b.ptr != nil {
			C.free(b.ptr)
			b.ptr = nil
		}
	}
	d.buffers = nil
	if d.dir != "" {
		if e := os.RemoveAll(d.dir); e != nil && err == nil {
			err = e
		}
		d.dir = ""
	}
	return err
}

func toKernel(k tuner.Kernel) (*kernel, error) {
	kern, ok := k.(*kernel)
	if !ok {
		return nil, fmt.Errorf("kernel %T was not compiled by this device", k)
	}
	return kern, nil
}

func dlerrString() string {
	if msg := C.dlerror(); msg != nil {
		return C.GoString(msg)
	}
	return "unknown dlopen error"
}
