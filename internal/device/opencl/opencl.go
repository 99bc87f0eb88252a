//go:build opencl

// Package opencl benchmarks kernels through the OpenCL runtime.
//
// The device index selects an OpenCL platform; the context spans every
// device on that platform and the profiling command queue targets the
// first one. Kernel runtimes come from event profiling timestamps.
package opencl

/*
#cgo LDFLAGS: -lOpenCL

#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>

// Minimal OpenCL forward declarations to avoid requiring headers at compile
// time. The linker still needs libOpenCL when building with the opencl tag.
typedef void* cl_platform_id;
typedef void* cl_device_id;
typedef void* cl_context;
typedef void* cl_command_queue;
typedef void* cl_mem;
typedef void* cl_program;
typedef void* cl_kernel;
typedef void* cl_event;
typedef int32_t cl_int;
typedef uint32_t cl_uint;
typedef uint32_t cl_bool;
typedef uint64_t cl_ulong;
typedef uint64_t cl_bitfield;
typedef cl_bitfield cl_device_type;
typedef cl_bitfield cl_mem_flags;
typedef cl_bitfield cl_command_queue_properties;
typedef cl_uint cl_device_info;
typedef cl_uint cl_program_build_info;
typedef cl_uint cl_profiling_info;
typedef intptr_t cl_context_properties;

#define KT_CL_DEVICE_TYPE_ALL            0xFFFFFFFF
#define KT_CL_CONTEXT_PLATFORM           0x1084
#define KT_CL_QUEUE_PROFILING_ENABLE     (1 << 1)
#define KT_CL_MEM_READ_WRITE             (1 << 0)
#define KT_CL_MEM_COPY_HOST_PTR          (1 << 5)
#define KT_CL_DEVICE_NAME                0x102B
#define KT_CL_DEVICE_MAX_WORK_GROUP_SIZE 0x1004
#define KT_CL_PROGRAM_BUILD_LOG          0x1183
#define KT_CL_PROFILING_COMMAND_START    0x1282
#define KT_CL_PROFILING_COMMAND_END      0x1283
#define KT_CL_TRUE                       1

extern cl_int clGetPlatformIDs(cl_uint num_entries, cl_platform_id* platforms, cl_uint* num_platforms);
extern cl_int clGetDeviceIDs(cl_platform_id platform, cl_device_type type, cl_uint num_entries, cl_device_id* devices, cl_uint* num_devices);
extern cl_int clGetDeviceInfo(cl_device_id device, cl_device_info param, size_t size, void* value, size_t* size_ret);
extern cl_context clCreateContext(const cl_context_properties* properties, cl_uint num_devices, const cl_device_id* devices, void* pfn_notify, void* user_data, cl_int* err);
extern cl_command_queue clCreateCommandQueue(cl_context context, cl_device_id device, cl_command_queue_properties properties, cl_int* err);
extern cl_mem clCreateBuffer(cl_context context, cl_mem_flags flags, size_t size, void* host_ptr, cl_int* err);
extern cl_program clCreateProgramWithSource(cl_context context, cl_uint count, const char** strings, const size_t* lengths, cl_int* err);
extern cl_int clBuildProgram(cl_program program, cl_uint num_devices, const cl_device_id* devices, const char* options, void* pfn_notify, void* user_data);
extern cl_int clGetProgramBuildInfo(cl_program program, cl_device_id device, cl_program_build_info param, size_t size, void* value, size_t* size_ret);
extern cl_kernel clCreateKernel(cl_program program, const char* name, cl_int* err);
extern cl_int clSetKernelArg(cl_kernel kernel, cl_uint index, size_t size, const void* value);
extern cl_int clEnqueueNDRangeKernel(cl_command_queue queue, cl_kernel kernel, cl_uint dim, const size_t* offset, const size_t* global, const size_t* local, cl_uint num_wait, const cl_event* wait, cl_event* event);
extern cl_int clWaitForEvents(cl_uint num_events, const cl_event* events);
extern cl_int clGetEventProfilingInfo(cl_event event, cl_profiling_info param, size_t size, void* value, size_t* size_ret);
extern cl_int clEnqueueReadBuffer(cl_command_queue queue, cl_mem buffer, cl_bool blocking, size_t offset, size_t size, void* ptr, cl_uint num_wait, const cl_event* wait, cl_event* event);
extern cl_int clEnqueueFillBuffer(cl_command_queue queue, cl_mem buffer, const void* pattern, size_t pattern_size, size_t offset, size_t size, cl_uint num_wait, const cl_event* wait, cl_event* event);
extern cl_int clReleaseEvent(cl_event event);
extern cl_int clReleaseKernel(cl_kernel kernel);
extern cl_int clReleaseProgram(cl_program program);
extern cl_int clReleaseMemObject(cl_mem mem);
extern cl_int clReleaseCommandQueue(cl_command_queue queue);
extern cl_int clReleaseContext(cl_context context);
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

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

// Device owns one OpenCL context and its profiling queue. It is not safe
// for concurrent use.
type Device struct {
	dev        C.cl_device_id
	ctx        C.cl_context
	queue      C.cl_command_queue
	name       string
	maxThreads int64
	buffers    []*buffer
	kernels    []*kernel
}

type buffer struct {
	mem   C.cl_mem
	bytes int
	n     int
	kind  elemKind
}

type kernel struct {
	name string
	prog C.cl_program
	k    C.cl_kernel
}

// Open selects platform index and builds a context over all its devices,
// with a profiling command queue on the first one.
func Open(index int) (*Device, error) {
	if index < 0 {
		return nil, fmt.Errorf("platform index must not be negative, got %d", index)
	}
	var nplat C.cl_uint
	if code := C.clGetPlatformIDs(0, nil, &nplat); code != 0 {
		return nil, clError("clGetPlatformIDs", int32(code))
	}
	if nplat == 0 {
		return nil, fmt.Errorf("no opencl platforms found")
	}
	if index >= int(nplat) {
		return nil, fmt.Errorf("platform index %d out of range, %d platforms present", index, nplat)
	}
	platforms := make([]C.cl_platform_id, nplat)
	if code := C.clGetPlatformIDs(nplat, &platforms[0], nil); code != 0 {
		return nil, clError("clGetPlatformIDs", int32(code))
	}
	platform := platforms[index]

	var ndev C.cl_uint
	if code := C.clGetDeviceIDs(platform, C.KT_CL_DEVICE_TYPE_ALL, 0, nil, &ndev); code != 0 {
		return nil, clError("clGetDeviceIDs", int32(code))
	}
	if ndev == 0 {
		return nil, fmt.Errorf("opencl platform %d has no devices", index)
	}
	devs := make([]C.cl_device_id, ndev)
	if code := C.clGetDeviceIDs(platform, C.KT_CL_DEVICE_TYPE_ALL, ndev, &devs[0], nil); code != 0 {
		return nil, clError("clGetDeviceIDs", int32(code))
	}

	props := [3]C.cl_context_properties{
		C.KT_CL_CONTEXT_PLATFORM,
		C.cl_context_properties(uintptr(platform)),
		0,
	}
	var code C.cl_int
	ctx := C.clCreateContext(&props[0], ndev, &devs[0], nil, nil, &code)
	if code != 0 {
		return nil, clError("clCreateContext", int32(code))
	}
	queue := C.clCreateCommandQueue(ctx, devs[0], C.KT_CL_QUEUE_PROFILING_ENABLE, &code)
	if code != 0 {
		C.clReleaseContext(ctx)
		return nil, clError("clCreateCommandQueue", int32(code))
	}

	var wg C.size_t
	if code := C.clGetDeviceInfo(devs[0], C.KT_CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(wg)), unsafe.Pointer(&wg), nil); code != 0 {
		C.clReleaseCommandQueue(queue)
		C.clReleaseContext(ctx)
		return nil, clError("clGetDeviceInfo", int32(code))
	}
	var nameBuf [256]byte
	var nameLen C.size_t
	if code := C.clGetDeviceInfo(devs[0], C.KT_CL_DEVICE_NAME, C.size_t(len(nameBuf)), unsafe.Pointer(&nameBuf[0]), &nameLen); code != 0 {
		C.clReleaseCommandQueue(queue)
		C.clReleaseContext(ctx)
		return nil, clError("clGetDeviceInfo", int32(code))
	}
	name := strings.TrimRight(string(nameBuf[:nameLen]), "\x00")

	return &Device{dev: devs[0], ctx: ctx, queue: queue, name: name, maxThreads: int64(wg)}, nil
}

func (d *Device) Name() string {
	return "opencl/" + d.name
}

// MaxThreads reports the device's maximum work-group size.
func (d *Device) MaxThreads() int64 {
	return d.maxThreads
}

// StageArgs copies slice arguments into read-write device buffers; scalars
// stage as themselves and are set by value at launch. Buffers live until
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
	var code C.cl_int
	mem := C.clCreateBuffer(d.ctx, C.KT_CL_MEM_READ_WRITE|C.KT_CL_MEM_COPY_HOST_PTR, C.size_t(bytes), host, &code)
	if code != 0 {
		return nil, clError("clCreateBuffer", int32(code))
	}
	b := &buffer{mem: mem, bytes: bytes, n: n, kind: kind}
	d.buffers = append(d.buffers, b)
	return b, nil
}

// Compile builds source for the context and extracts the kernel by name.
// Build failures carry the program build log.
func (d *Device) Compile(name, source string) (tuner.Kernel, error) {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	var code C.cl_int
	prog := C.clCreateProgramWithSource(d.ctx, 1, &csrc, nil, &code)
	if code != 0 {
		return nil, clError("clCreateProgramWithSource", int32(code))
	}
	if code := C.clBuildProgram(prog, 0, nil, nil, nil, nil); code != 0 {
		log := d.buildLog(prog)
		C.clReleaseProgram(prog)
		return nil, &tuner.CompileError{Kernel: name, Detail: log, Err: clError("clBuildProgram", int32(code))}
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	k := C.clCreateKernel(prog, cname, &code)
	if code != 0 {
		C.clReleaseProgram(prog)
		return nil, &tuner.CompileError{Kernel: name, Err: clError("clCreateKernel", int32(code))}
	}
	kern := &kernel{name: name, prog: prog, k: k}
	d.kernels = append(d.kernels, kern)
	return kern, nil
}

func (d *Device) buildLog(prog C.cl_program) string {
	var sz C.size_t
	if code := C.clGetProgramBuildInfo(prog, d.dev, C.KT_CL_PROGRAM_BUILD_LOG, 0, nil, &sz); code != 0 || sz == 0 {
		return ""
	}
	buf := make([]byte, sz)
	if code := C.clGetProgramBuildInfo(prog, d.dev, C.KT_CL_PROGRAM_BUILD_LOG, sz, unsafe.Pointer(&buf[0]), nil); code != 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(buf), "\x00"))
}

// Launch enqueues the kernel over an NDRange of grid work-groups of block
// work-items and waits for completion.
func (d *Device) Launch(k tuner.Kernel, args []any, block tuner.Dim3, grid tuner.Grid) error {
	kern, err := toKernel(k)
	if err != nil {
		return err
	}
	if err := d.setArgs(kern, args); err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	if _, err := d.run(kern, block, grid); err != nil {
		return &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	return nil
}

// Benchmark runs the kernel iterations times, timing each run with event
// profiling timestamps.
func (d *Device) Benchmark(k tuner.Kernel, args []any, block tuner.Dim3, grid tuner.Grid, iterations int) ([]float64, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	kern, err := toKernel(k)
	if err != nil {
		return nil, err
	}
	if err := d.setArgs(kern, args); err != nil {
		return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
	}
	samples := make([]float64, iterations)
	for i := range samples {
		ms, err := d.run(kern, block, grid)
		if err != nil {
			return nil, &tuner.LaunchError{Kernel: kern.name, Err: err}
		}
		samples[i] = ms
	}
	return samples, nil
}

func (d *Device) setArgs(kern *kernel, staged []any) error {
	for i, a := range staged {
		var (
			size C.size_t
			ptr  unsafe.Pointer
		)
		switch v := a.(type) {
		case *buffer:
			size = C.size_t(unsafe.Sizeof(v.mem))
			ptr = unsafe.Pointer(&v.mem)
		case int32:
			local := v
			size, ptr = 4, unsafe.Pointer(&local)
		case uint32:
			local := v
			size, ptr = 4, unsafe.Pointer(&local)
		case int64:
			local := v
			size, ptr = 8, unsafe.Pointer(&local)
		case float32:
			local := v
			size, ptr = 4, unsafe.Pointer(&local)
		case float64:
			local := v
			size, ptr = 8, unsafe.Pointer(&local)
		default:
			return fmt.Errorf("unsupported staged argument %T at index %d", a, i)
		}
		if code := C.clSetKernelArg(kern.k, C.cl_uint(i), size, ptr); code != 0 {
			return fmt.Errorf("argument %d: %w", i, clError("clSetKernelArg", int32(code)))
		}
	}
	return nil
}

func (d *Device) run(kern *kernel, block tuner.Dim3, grid tuner.Grid) (float64, error) {
	global := [3]C.size_t{C.size_t(grid.X * block.X), C.size_t(grid.Y * block.Y), C.size_t(block.Z)}
	local := [3]C.size_t{C.size_t(block.X), C.size_t(block.Y), C.size_t(block.Z)}
	var ev C.cl_event
	if code := C.clEnqueueNDRangeKernel(d.queue, kern.k, 3, nil, &global[0], &local[0], 0, nil, &ev); code != 0 {
		return 0, clError("clEnqueueNDRangeKernel", int32(code))
	}
	defer C.clReleaseEvent(ev)
	if code := C.clWaitForEvents(1, &ev); code != 0 {
		return 0, clError("clWaitForEvents", int32(code))
	}
	var start, end C.cl_ulong
	if code := C.clGetEventProfilingInfo(ev, C.KT_CL_PROFILING_COMMAND_START, C.size_t(unsafe.Sizeof(start)), unsafe.Pointer(&start), nil); code != 0 {
		return 0, clError("clGetEventProfilingInfo", int32(code))
	}
	if code := C.clGetEventProfilingInfo(ev, C.KT_CL_PROFILING_COMMAND_END, C.size_t(unsafe.Sizeof(end)), unsafe.Pointer(&end), nil); code != 0 {
		return 0, clError("clGetEventProfilingInfo", int32(code))
	}
	return float64(end-start) * 1e-6, nil
}

// CopyToHost blocks until the buffer contents are read back into dst.
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
	if code := C.clEnqueueReadBuffer(d.queue, b.mem, C.KT_CL_TRUE, 0, C.size_t(b.bytes), dstPtr, 0, nil, nil); code != 0 {
		return clError("clEnqueueReadBuffer", int32(code))
	}
	return nil
}

// Zero fills the buffer with zero bytes. The in-order queue sequences the
// fill before any launch enqueued after it.
func (d *Device) Zero(buf any) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("buffer %T was not staged by this device", buf)
	}
	var zero byte
	if code := C.clEnqueueFillBuffer(d.queue, b.mem, unsafe.Pointer(&zero), 1, 0, C.size_t(b.bytes), 0, nil, nil); code != 0 {
		return clError("clEnqueueFillBuffer", int32(code))
	}
	return nil
}

func (d *Device) Close() error {
	var err error
	for _, k := range d.kernels {
		if k.k != nil {
			if code := C.clReleaseKernel(k.k); code != 0 && err == nil {
				err = clError("clReleaseKernel", int32(code))
			}
			k.k = nil
		}
		if k.prog != nil {
			if code := C.clReleaseProgram(k.prog); code != 0 && err == nil {
				err = clError("clReleaseProgram", int32(code))
			}
			k.prog = nil
		}
	}
	d.kernels = nil
	for _, b := range d.buffers {
		if b.mem != nil {
			if code := C.clReleaseMemObject(b.mem); code != 0 && err == nil {
				err = clError("clReleaseMemObject", int32(code))
			}
			b.mem = nil
		}
	}
	d.buffers = nil
	if d.queue != nil {
		if code := C.clReleaseCommandQueue(d.queue); code != 0 && err == nil {
			err = clError("clReleaseCommandQueue", int32(code))
		}
		d.queue = nil
	}
	if d.ctx != nil {
		if code := C.clReleaseContext(d.ctx); code != 0 && err == nil {
			err = clError("clReleaseContext", int32(code))
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
