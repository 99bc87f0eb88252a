//go:build cuda

// Package cuda benchmarks kernels on NVIDIA GPUs through NVRTC and the
// CUDA driver API.
//
// Source is compiled to PTX with NVRTC and loaded as a module; runtimes
// come from event pairs recorded around each launch. The driver's own
// error strings are kept in returned errors, so resource exhaustion reads
// as "too many resources requested for launch".
package cuda

/*
#cgo LDFLAGS: -lcuda -lnvrtc

#include <stddef.h>
#include <stdlib.h>

// Minimal CUDA driver and NVRTC forward declarations to avoid requiring
// headers at compile time. The linker still needs libcuda and libnvrtc
// when building with the cuda tag.
typedef int CUresult;
typedef int CUdevice;
typedef void* CUcontext;
typedef void* CUmodule;
typedef void* CUfunction;
typedef void* CUstream;
typedef void* CUevent;
typedef unsigned long long CUdeviceptr;
typedef int CUjit_option;
typedef void* nvrtcProgram;
typedef int nvrtcResult;

extern CUresult cuInit(unsigned int flags);
extern CUresult cuGetErrorString(CUresult error, const char** str);
extern CUresult cuDeviceGetCount(int* count);
extern CUresult cuDeviceGet(CUdevice* device, int ordinal);
extern CUresult cuDeviceGetName(char* name, int len, CUdevice dev);
extern CUresult cuDeviceGetAttribute(int* value, int attrib, CUdevice dev);
extern CUresult cuCtxCreate_v2(CUcontext* ctx, unsigned int flags, CUdevice dev);
extern CUresult cuCtxDestroy_v2(CUcontext ctx);
extern CUresult cuCtxSynchronize(void);
extern CUresult cuModuleLoadDataEx(CUmodule* module, const void* image, unsigned int numOptions, CUjit_option* options, void** optionValues);
extern CUresult cuModuleUnload(CUmodule module);
extern CUresult cuModuleGetFunction(CUfunction* fn, CUmodule module, const char* name);
extern CUresult cuModuleGetGlobal_v2(CUdeviceptr* dptr, size_t* bytes, CUmodule module, const char* name);
extern CUresult cuMemAlloc_v2(CUdeviceptr* dptr, size_t size);
extern CUresult cuMemFree_v2(CUdeviceptr dptr);
extern CUresult cuMemcpyHtoD_v2(CUdeviceptr dst, const void* src, size_t size);
extern CUresult cuMemcpyDtoH_v2(void* dst, CUdeviceptr src, size_t size);
extern CUresult cuMemsetD8_v2(CUdeviceptr dptr, unsigned char value, size_t size);
extern CUresult cuEventCreate(CUevent* event, unsigned int flags);
extern CUresult cuEventDestroy_v2(CUevent event);
extern CUresult cuEventRecord(CUevent event, CUstream stream);
extern CUresult cuEventSynchronize(CUevent event);
extern CUresult cuEventElapsedTime(float* ms, CUevent start, CUevent end);
extern CUresult cuLaunchKernel(CUfunction fn, unsigned int gridX, unsigned int gridY, unsigned int gridZ, unsigned int blockX, unsigned int blockY, unsigned int blockZ, unsigned int sharedBytes, CUstream stream, void** params, void** extra);

extern nvrtcResult nvrtcCreateProgram(nvrtcProgram* prog, const char* src, const char* name, int numHeaders, const char** headers, const char** includeNames);
extern nvrtcResult nvrtcDestroyProgram(nvrtcProgram* prog);
extern nvrtcResult nvrtcCompileProgram(nvrtcProgram prog, int numOptions, const char** options);
extern nvrtcResult nvrtcGetProgramLogSize(nvrtcProgram prog, size_t* size);
extern nvrtcResult nvrtcGetProgramLog(nvrtcProgram prog, char* log);
extern nvrtcResult nvrtcGetPTXSize(nvrtcProgram prog, size_t* size);
extern nvrtcResult nvrtcGetPTX(nvrtcProgram prog, char* ptx);
extern const char* nvrtcGetErrorString(nvrtcResult result);

#define KT_CU_DEVICE_ATTRIBUTE_MAX_THREADS_PER_BLOCK 1
#define KT_CU_JIT_ERROR_LOG_BUFFER 5
#define KT_CU_JIT_ERROR_LOG_BUFFER_SIZE_BYTES 6

static const char* ktCuErrorString(CUresult code) {
	const char* s = NULL;
	cuGetErrorString(code, &s);
	return s;
}

static int ktCuModuleLoad(CUmodule* module, const void* image, char* errbuf, size_t errlen) {
	CUjit_option opts[2] = {KT_CU_JIT_ERROR_LOG_BUFFER, KT_CU_JIT_ERROR_LOG_BUFFER_SIZE_BYTES};
	void* vals[2];
	vals[0] = errbuf;
	vals[1] = (void*)errlen;
	return (int)cuModuleLoadDataEx(module, image, 2, opts, vals);
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

type elemKind int

const (
	kindInt32 elemKind = iota
	kindUint32
	kindInt64
	kindFloat32
	kindFloat64
)

func (k elemKind) size() int {
	switch k {
	case kindInt32, kindUint32, kindFloat32:
		return 4
	default:
		return 8
	}
}

// Device owns one CUDA context. It is not safe for concurrent use.
type Device struct {
	ctx        C.CUcontext
	dev        C.CUdevice
	name       string
	maxThreads int64
	buffers    []*buffer
	kernels    []*kernel
}

type buffer struct {
	ptr   C.CUdeviceptr
	bytes int
	n     int
	kind  elemKind
}

type kernel struct {
	name string
	mod  C.CUmodule
	fn   C.CUfunction
}

// Open initializes the driver and creates a context on device ordinal
// index.
func Open(index int) (*Device, error) {
	if err := cuErr("cuInit", C.cuInit(0)); err != nil {
		return nil, err
	}
	var count C.int
	if err := cuErr("cuDeviceGetCount", C.cuDeviceGetCount(&count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no cuda devices detected")
	}
	if index < 0 || index >= int(count) {
		return nil, fmt.Errorf("device index %d out of range, %d devices present", index, count)
	}
	var dev C.CUdevice
	if err := cuErr("cuDeviceGet", C.cuDeviceGet(&dev, C.int(index))); err != nil {
		return nil, err
	}
	var nameBuf [256]byte
	if err := cuErr("cuDeviceGetName", C.cuDeviceGetName((*C.char)(unsafe.Pointer(&nameBuf[0])), C.int(len(nameBuf)), dev)); err != nil {
		return nil, err
	}
	name := string(nameBuf[:])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	var maxThreads C.int
	if err := cuErr("cuDeviceGetAttribute", C.cuDeviceGetAttribute(&maxThreads, C.KT_CU_DEVICE_ATTRIBUTE_MAX_THREADS_PER_BLOCK, dev)); err != nil {
		return nil, err
	}
	var ctx C.CUcontext
	if err := cuErr("cuCtxCreate", C.cuCtxCreate_v2(&ctx, 0, dev)); err != nil {
		return nil, err
	}
	return &Device{ctx: ctx, dev: dev, name: name, maxThreads: int64(maxThreads)}, nil
}

func (d *Device) Name() string {
	return "cuda/" + d.name
}

// MaxThreads reports the device's maximum threads per block.
func (d *Device) MaxThreads() int64 {
	return d.maxThreads
}

// StageArgs copies slice arguments into device allocations; scalars stage
// as themselves and are passed by value at launch. Allocations live until
// Close.
func (d *Device) StageArgs(args tuner.Args) ([]any, error) {
	staged := make([]any, len(args))
	for i, a := range args {
		var (
			b   *buffer
			err error
		)
		switch v := a.(type) {
		case []int32:
			b, err = d.newBuffer(kindInt32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
		case []uint32:
			b, err = d.newBuffer(kindUint32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
		case []float32:
			b, err = d.newBuffer(kindFloat32, len(v), unsafe.Pointer(unsafe.SliceData(v)))
		case []float64:
			b, err = d.newBuffer(kindFloat64, len(v), unsafe.Pointer(unsafe.SliceData(v)))
		case int32, uint32, int64, float32, float64:
			staged[i] = a
			continue
		default:
			return nil, fmt.Errorf("unsupported argument type %T at index %d", a, i)
		}
		if err != nil {
			return nil, fmt.Errorf("staging argument %d: %w", i, err)
		}
		staged[i] = b
	}
	return staged, nil
}

func (d *Device) newBuffer(kind elemKind, n int, host unsafe.Pointer) (*buffer, error) {
	bytes := n * kind.size()
	if bytes == 0 {
		return nil, fmt.Errorf("empty slice cannot be staged")
	}
	var ptr C.CUdeviceptr
	if err := cuErr("cuMemAlloc", C.cuMemAlloc_v2(&ptr, C.size_t(bytes))); err != nil {
		return nil, err
	}
	if err := cuErr("cuMemcpyHtoD", C.cuMemcpyHtoD_v2(ptr, host, C.size_t(bytes))); err != nil {
		C.cuMemFree_v2(ptr)
		return nil, err
	}
	b := &buffer{ptr: ptr, bytes: bytes, n: n, kind: kind}
	d.buffers = append(d.buffers, b)
	return b, nil
}

// Compile turns source into PTX with NVRTC and loads it as a module.
// NVRTC failures carry the compiler log; JIT load failures carry the
// driver's error log.
func (d *Device) Compile(name, source string) (tuner.Kernel, error) {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	cfile := C.CString(name + ".cu")
	defer C.free(unsafe.Pointer(cfile))

	var prog C.nvrtcProgram
	if err := nvrtcErr("nvrtcCreateProgram", C.nvrtcCreateProgram(&prog, csrc, cfile, 0, nil, nil)); err != nil {
		return nil, err
	}
	defer C.nvrtcDestroyProgram(&prog)

	if code := C.nvrtcCompileProgram(prog, 0, nil); code != 0 {
		return nil, &tuner.CompileError{Kernel: name, Detail: nvrtcLog(prog), Err: nvrtcErr("nvrtcCompileProgram", code)}
	}

	var ptxSize C.size_t
	if err := nvrtcErr("nvrtcGetPTXSize", C.nvrtcGetPTXSize(prog, &ptxSize)); err != nil {
		return nil, err
	}
	ptx := make([]byte, ptxSize)
	if err := nvrtcErr("nvrtcGetPTX", C.nvrtcGetPTX(prog, (*C.char)(unsafe.Pointer(&ptx[0])))); err != nil {
		return nil, err
	}

	var errBuf [4096]byte
	var mod C.CUmodule
	if code := C.ktCuModuleLoad(&mod, unsafe.Pointer(&ptx[0]), (*C.char)(unsafe.Pointer(&errBuf[0])), C.size_t(len(errBuf))); code != 0 {
		detail := string(errBuf[:])
		if i := strings.IndexByte(detail, 0); i >= 0 {
			detail = detail[:i]
		}
		return nil, &tuner.CompileError{Kernel: name, Detail: strings.TrimSpace(detail), Err: cuErr("cuModuleLoadDataEx", C.CUresult(code))}
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var fn C.CUfunction
	if code := C.cuModuleGetFunction(&fn, mod, cname); code != 0 {
		C.cuModuleUnload(mod)
		return nil, &tuner.CompileError{Kernel: name, Err: cuErr("cuModuleGetFunction", code)}
	}

	kern := &kernel{name: name, mod: mod, fn: fn}
	d.kernels = append(d.kernels, kern)
	return kern, nil
}

// SetConstantMemory copies each named host array into the matching
// __constant__ symbol of the kernel's module.
func (d *Device) SetConstantMemory(k tuner.Kernel, args map[string]any) error {
	kern, err := toKernel(k)
	if err != nil {
		return err
	}
	for name, value := range args {
		var (
			src   unsafe.Pointer
			bytes int
		)
		switch v := value.(type) {
		case []int32:
			src, bytes = unsafe.Pointer(unsafe.SliceData(v)), 4*len(v)
		case []uint32:
			src, bytes = unsafe.Pointer(unsafe.SliceData(v)), 4*len(v)
		case []float32:
			src, bytes = unsafe.Pointer(unsafe.SliceData(v)), 4*len(v)
		case []float64:
			src, bytes = unsafe.Pointer(unsafe.SliceData(v)), 8*len(v)
		default:
			return fmt.Errorf("constant memory argument %q must be a slice, got %T", name, value)
		}
		cname := C.CString(name)
		var dptr C.CUdeviceptr
		var sz C.size_t
		code := C.cuModuleGetGlobal_v2(&dptr, &sz, kern.mod, cname)
		C.free(unsafe.Pointer(cname))
		if code != 0 {
			return fmt.Errorf("constant symbol %q: %w", name, cuErr("cuModuleGetGlobal", code))
		}
		if int(sz) < bytes {
			return fmt.Errorf("constant symbol %q holds %d bytes, argument needs %d", name, int(sz), bytes)
		}
		if bytes == 0 {
			continue
		}
		if err := cuErr("cuMemcpyHtoD", C.cuMemcpyHtoD_v2(dptr, src, C.size_t(bytes))); err != nil {
			return fmt.Errorf("constant symbol %q: %w", name, err)
		}
	}
	return nil
}

// Launch runs the kernel over grid blocks of block threads and waits for
// completion.
func (d *Device) Launch(k tuner.Kernel, args []any, block tuner.Dim3, grid tuner.Grid) error {
	kern, err := toKernel(k)
	if err != nil {
		return err
	}
	argv, err := buildArgv(args)
	if err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	defer C.free(argv)
	if err := d.launchOnce(kern, argv, block, grid); err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	if err := cuErr("cuCtxSynchronize", C.cuCtxSynchronize()); err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	return nil
}

// Benchmark runs the kernel iterations times, timing each run with an
// event pair.
func (d *Device) Benchmark(k tuner.Kernel, args []any, block tuner.Dim3, grid tuner.Grid, iterations int) ([]float64, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	kern, err := toKernel(k)
	if err != nil {
		return nil, err
	}
	argv, err := buildArgv(args)
	if err != nil {
		return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	defer C.free(argv)

	var start, end C.CUevent
	if err := cuErr("cuEventCreate", C.cuEventCreate(&start, 0)); err != nil {
		return nil, err
	}
	defer C.cuEventDestroy_v2(start)
	if err := cuErr("cuEventCreate", C.cuEventCreate(&end, 0)); err != nil {
		return nil, err
	}
	defer C.cuEventDestroy_v2(end)

	samples := make([]float64, iterations)
	for i := range samples {
		if err := cuErr("cuEventRecord", C.cuEventRecord(start, nil)); err != nil {
			return nil, err
		}
		if err := d.launchOnce(kern, argv, block, grid); err != nil {
			return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
		}
		if err := cuErr("cuEventRecord", C.cuEventRecord(end, nil)); err != nil {
			return nil, err
		}
		if err := cuErr("cuEventSynchronize", C.cuEventSynchronize(end)); err != nil {
			return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
		}
		var ms C.float
		if err := cuErr("cuEventElapsedTime", C.cuEventElapsedTime(&ms, start, end)); err != nil {
			return nil, err
		}
		samples[i] = float64(ms)
	}
	return samples, nil
}

func (d *Device) launchOnce(kern *kernel, argv unsafe.Pointer, block tuner.Dim3, grid tuner.Grid) error {
	code := C.cuLaunchKernel(kern.fn,
		C.uint(grid.X), C.uint(grid.Y), 1,
		C.uint(block.X), C.uint(block.Y), C.uint(block.Z),
		0, nil, (*unsafe.Pointer)(argv), nil)
	return cuErr("cuLaunchKernel", code)
}

// buildArgv lays out the kernel parameter vector in C memory: one pointer
// slot per argument, each pointing at an 8-byte slot holding the device
// pointer or scalar value.
func buildArgv(staged []any) (unsafe.Pointer, error) {
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
			*(*C.CUdeviceptr)(slot) = v.ptr
		case int32:
			*(*int32)(slot) = v
		case uint32:
			*(*uint32)(slot) = v
		case int64:
			*(*int64)(slot) = v
		case float32:
			*(*float32)(slot) = v
		case float64:
			*(*float64)(slot) = v
		default:
			C.free(mem)
			return nil, fmt.Errorf("unsupported staged argument %T at index %d", a, i)
		}
		slots[i] = slot
	}
	return mem, nil
}

// CopyToHost blocks until the device allocation is read back into dst.
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
	return cuErr("cuMemcpyDtoH", C.cuMemcpyDtoH_v2(dstPtr, b.ptr, C.size_t(b.bytes)))
}

// Zero overwrites the device allocation with zero bytes.
func (d *Device) Zero(buf any) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("buffer %T was not staged by this device", buf)
	}
	return cuErr("cuMemsetD8", C.cuMemsetD8_v2(b.ptr, 0, C.size_t(b.bytes)))
}

func (d *Device) Close() error {
	var err error
	for _, k := range d.kernels {
		if k.mod != nil {
			if e := cuErr("cuModuleUnload", C.cuModuleUnload(k.mod)); e != nil && err == nil {
				err = fmt.Errorf("unloading %s: %w", k.name, e)
			}
			k.mod = nil
			k.fn = nil
		}
	}
	d.kernels = nil
	for _, b := range d.buffers {
		if b.ptr != 0 {
			if e := cuErr("cuMemFree", C.cuMemFree_v2(b.ptr)); e != nil && err == nil {
				err = e
			}
			b.ptr = 0
		}
	}
	d.buffers = nil
	if d.ctx != nil {
		if e := cuErr("cuCtxDestroy", C.cuCtxDestroy_v2(d.ctx)); e != nil && err == nil {
			err = e
		}
		d.ctx = nil
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

func nvrtcLog(prog C.nvrtcProgram) string {
	var sz C.size_t
	if C.nvrtcGetProgramLogSize(prog, &sz) != 0 || sz <= 1 {
		return ""
	}
	buf := make([]byte, sz)
	if C.nvrtcGetProgramLog(prog, (*C.char)(unsafe.Pointer(&buf[0]))) != 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(buf), "\x00"))
}

func cuErr(op string, code C.CUresult) error {
	if code == 0 {
		return nil
	}
	msg := "unknown error"
	if s := C.ktCuErrorString(code); s != nil {
		msg = C.GoString(s)
	}
	return fmt.Errorf("%s: %s", op, msg)
}

func nvrtcErr(op string, code C.nvrtcResult) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", op, C.GoString(C.nvrtcGetErrorString(code)))
}
