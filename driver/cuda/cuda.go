//go:build cuda
// +build cuda

// Package cuda implements driver.Driver on top of the CUDA driver API via
// cgo. Build with -tags cuda on a machine with the CUDA toolkit installed;
// without the tag the package degrades to a stub that reports the driver as
// unavailable.
package cuda

/*
#cgo CFLAGS: -I/opt/cuda/include -I/usr/local/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -L/usr/local/cuda/lib64 -lcuda

#include <cuda.h>
#include <stdlib.h>

extern void gpumemStreamCallback(CUstream stream, CUresult status, void *userData);

static CUresult gpumemAddCallback(CUstream stream, uintptr_t handle) {
	return cuStreamAddCallback(stream, (CUstreamCallback)gpumemStreamCallback, (void *)handle, 0);
}
*/
import "C"
import (
	"runtime/cgo"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// Driver talks to the real CUDA driver. The zero value is usable; Init must
// be called before anything else.
type Driver struct {
	ctx C.CUcontext
	dev C.CUdevice
}

// New creates a CUDA driver.
func New() *Driver { return &Driver{} }

func result(op string, r C.CUresult) error {
	return driver.Errorf(op, driver.Code(r))
}

func (d *Driver) Init(device int) error {
	if err := result("cuInit", C.cuInit(0)); err != nil {
		return err
	}
	if err := result("cuDeviceGet", C.cuDeviceGet(&d.dev, C.int(device))); err != nil {
		return err
	}
	return result("cuCtxCreate", C.cuCtxCreate(&d.ctx, 0, d.dev))
}

func (d *Driver) DeviceCount() (int, error) {
	var n C.int
	if err := result("cuDeviceGetCount", C.cuDeviceGetCount(&n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *Driver) DeviceName() (string, error) {
	var buf [256]C.char
	if err := result("cuDeviceGetName", C.cuDeviceGetName(&buf[0], 256, d.dev)); err != nil {
		return "", err
	}
	return C.GoString(&buf[0]), nil
}

func (d *Driver) MemAlloc(bytes uintptr) (driver.Ptr, error) {
	var p C.CUdeviceptr
	if err := result("cuMemAlloc", C.cuMemAlloc(&p, C.size_t(bytes))); err != nil {
		return 0, err
	}
	return driver.Ptr(p), nil
}

func (d *Driver) MemAllocManaged(bytes uintptr) (driver.Ptr, error) {
	var p C.CUdeviceptr
	if err := result("cuMemAllocManaged", C.cuMemAllocManaged(&p, C.size_t(bytes), C.CU_MEM_ATTACH_GLOBAL)); err != nil {
		return 0, err
	}
	return driver.Ptr(p), nil
}

func (d *Driver) MemAllocHost(bytes uintptr) (driver.Ptr, error) {
	var p unsafe.Pointer
	if err := result("cuMemAllocHost", C.cuMemAllocHost(&p, C.size_t(bytes))); err != nil {
		return 0, err
	}
	return driver.Ptr(uintptr(p)), nil
}

func (d *Driver) MemFree(p driver.Ptr) error {
	return result("cuMemFree", C.cuMemFree(C.CUdeviceptr(p)))
}

func (d *Driver) MemFreeHost(p driver.Ptr) error {
	return result("cuMemFreeHost", C.cuMemFreeHost(unsafe.Pointer(uintptr(p))))
}

func (d *Driver) Memcpy(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind) error {
	switch kind {
	case driver.MemcpyHostToDevice:
		return result("cuMemcpyHtoD", C.cuMemcpyHtoD(C.CUdeviceptr(dst), unsafe.Pointer(uintptr(src)), C.size_t(bytes)))
	case driver.MemcpyDeviceToHost:
		return result("cuMemcpyDtoH", C.cuMemcpyDtoH(unsafe.Pointer(uintptr(dst)), C.CUdeviceptr(src), C.size_t(bytes)))
	case driver.MemcpyDeviceToDevice:
		return result("cuMemcpyDtoD", C.cuMemcpyDtoD(C.CUdeviceptr(dst), C.CUdeviceptr(src), C.size_t(bytes)))
	default:
		// Unified addressing lets the driver infer the direction.
		return result("cuMemcpy", C.cuMemcpy(C.CUdeviceptr(dst), C.CUdeviceptr(src), C.size_t(bytes)))
	}
}

func (d *Driver) MemcpyAsync(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind, s driver.Stream) error {
	stream := C.CUstream(unsafe.Pointer(uintptr(s)))
	switch kind {
	case driver.MemcpyHostToDevice:
		return result("cuMemcpyHtoDAsync", C.cuMemcpyHtoDAsync(C.CUdeviceptr(dst), unsafe.Pointer(uintptr(src)), C.size_t(bytes), stream))
	case driver.MemcpyDeviceToHost:
		return result("cuMemcpyDtoHAsync", C.cuMemcpyDtoHAsync(unsafe.Pointer(uintptr(dst)), C.CUdeviceptr(src), C.size_t(bytes), stream))
	case driver.MemcpyDeviceToDevice:
		return result("cuMemcpyDtoDAsync", C.cuMemcpyDtoDAsync(C.CUdeviceptr(dst), C.CUdeviceptr(src), C.size_t(bytes), stream))
	default:
		return result("cuMemcpyAsync", C.cuMemcpyAsync(C.CUdeviceptr(dst), C.CUdeviceptr(src), C.size_t(bytes), stream))
	}
}

func (d *Driver) MemsetD8(dst driver.Ptr, value byte, bytes uintptr) error {
	return result("cuMemsetD8", C.cuMemsetD8(C.CUdeviceptr(dst), C.uchar(value), C.size_t(bytes)))
}

func (d *Driver) StreamCreate(flags driver.StreamFlags, priority int) (driver.Stream, error) {
	var s C.CUstream
	if err := result("cuStreamCreateWithPriority", C.cuStreamCreateWithPriority(&s, C.uint(flags), C.int(priority))); err != nil {
		return 0, err
	}
	return driver.Stream(uintptr(unsafe.Pointer(s))), nil
}

func (d *Driver) StreamDestroy(s driver.Stream) error {
	return result("cuStreamDestroy", C.cuStreamDestroy(C.CUstream(unsafe.Pointer(uintptr(s)))))
}

func (d *Driver) StreamSynchronize(s driver.Stream) error {
	return result("cuStreamSynchronize", C.cuStreamSynchronize(C.CUstream(unsafe.Pointer(uintptr(s)))))
}

func (d *Driver) StreamGetFlags(s driver.Stream) (driver.StreamFlags, error) {
	var flags C.uint
	if err := result("cuStreamGetFlags", C.cuStreamGetFlags(C.CUstream(unsafe.Pointer(uintptr(s))), &flags)); err != nil {
		return 0, err
	}
	return driver.StreamFlags(flags), nil
}

func (d *Driver) StreamGetPriority(s driver.Stream) (int, error) {
	var priority C.int
	if err := result("cuStreamGetPriority", C.cuStreamGetPriority(C.CUstream(unsafe.Pointer(uintptr(s))), &priority)); err != nil {
		return 0, err
	}
	return int(priority), nil
}

//export gpumemStreamCallback
func gpumemStreamCallback(stream C.CUstream, status C.CUresult, userData unsafe.Pointer) {
	h := cgo.Handle(uintptr(userData))
	fn := h.Value().(driver.CallbackFunc)
	h.Delete()
	fn(driver.Errorf("stream callback", driver.Code(status)))
}

func (d *Driver) StreamAddCallback(s driver.Stream, fn driver.CallbackFunc) error {
	if fn == nil {
		return driver.Errorf("cuStreamAddCallback", driver.ErrorInvalidValue)
	}
	h := cgo.NewHandle(fn)
	err := result("cuStreamAddCallback", C.gpumemAddCallback(C.CUstream(unsafe.Pointer(uintptr(s))), C.uintptr_t(h)))
	if err != nil {
		h.Delete()
	}
	return err
}

func (d *Driver) StreamWaitEvent(s driver.Stream, e driver.Event) error {
	return result("cuStreamWaitEvent", C.cuStreamWaitEvent(
		C.CUstream(unsafe.Pointer(uintptr(s))), C.CUevent(unsafe.Pointer(uintptr(e))), 0))
}

func (d *Driver) LaunchKernel(f driver.Function, gridX, gridY, gridZ, blockX, blockY, blockZ uint32, sharedMemBytes uint32, s driver.Stream, params []driver.Ptr) error {
	var kernelParams *unsafe.Pointer
	if len(params) > 0 {
		kernelParams = (*unsafe.Pointer)(unsafe.Pointer(&params[0]))
	}
	return result("cuLaunchKernel", C.cuLaunchKernel(
		C.CUfunction(unsafe.Pointer(uintptr(f))),
		C.uint(gridX), C.uint(gridY), C.uint(gridZ),
		C.uint(blockX), C.uint(blockY), C.uint(blockZ),
		C.uint(sharedMemBytes),
		C.CUstream(unsafe.Pointer(uintptr(s))),
		kernelParams,
		nil,
	))
}

func (d *Driver) ModuleLoad(path string) (driver.Module, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	var m C.CUmodule
	if err := result("cuModuleLoad", C.cuModuleLoad(&m, cPath)); err != nil {
		return 0, err
	}
	return driver.Module(uintptr(unsafe.Pointer(m))), nil
}

func (d *Driver) ModuleLoadData(image []byte) (driver.Module, error) {
	if len(image) == 0 {
		return 0, driver.Errorf("cuModuleLoadData", driver.ErrorInvalidImage)
	}
	var m C.CUmodule
	if err := result("cuModuleLoadData", C.cuModuleLoadData(&m, unsafe.Pointer(&image[0]))); err != nil {
		return 0, err
	}
	return driver.Module(uintptr(unsafe.Pointer(m))), nil
}

func (d *Driver) ModuleUnload(m driver.Module) error {
	return result("cuModuleUnload", C.cuModuleUnload(C.CUmodule(unsafe.Pointer(uintptr(m)))))
}

func (d *Driver) ModuleGetFunction(m driver.Module, name string) (driver.Function, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var f C.CUfunction
	if err := result("cuModuleGetFunction", C.cuModuleGetFunction(&f, C.CUmodule(unsafe.Pointer(uintptr(m))), cName)); err != nil {
		return 0, err
	}
	return driver.Function(uintptr(unsafe.Pointer(f))), nil
}

func (d *Driver) ModuleGetGlobal(m driver.Module, name string) (driver.Ptr, uintptr, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var p C.CUdeviceptr
	var bytes C.size_t
	if err := result("cuModuleGetGlobal", C.cuModuleGetGlobal(&p, &bytes, C.CUmodule(unsafe.Pointer(uintptr(m))), cName)); err != nil {
		return 0, 0, err
	}
	return driver.Ptr(p), uintptr(bytes), nil
}

func (d *Driver) EventCreate(flags driver.EventFlags) (driver.Event, error) {
	var e C.CUevent
	if err := result("cuEventCreate", C.cuEventCreate(&e, C.uint(flags))); err != nil {
		return 0, err
	}
	return driver.Event(uintptr(unsafe.Pointer(e))), nil
}

func (d *Driver) EventDestroy(e driver.Event) error {
	return result("cuEventDestroy", C.cuEventDestroy(C.CUevent(unsafe.Pointer(uintptr(e)))))
}

func (d *Driver) EventRecord(e driver.Event, s driver.Stream) error {
	return result("cuEventRecord", C.cuEventRecord(
		C.CUevent(unsafe.Pointer(uintptr(e))), C.CUstream(unsafe.Pointer(uintptr(s)))))
}

func (d *Driver) EventQuery(e driver.Event) (bool, error) {
	r := C.cuEventQuery(C.CUevent(unsafe.Pointer(uintptr(e))))
	switch driver.Code(r) {
	case driver.Success:
		return true, nil
	case driver.ErrorNotReady:
		return false, nil
	default:
		return false, result("cuEventQuery", r)
	}
}

func (d *Driver) EventSynchronize(e driver.Event) error {
	return result("cuEventSynchronize", C.cuEventSynchronize(C.CUevent(unsafe.Pointer(uintptr(e)))))
}

func (d *Driver) EventElapsed(start, end driver.Event) (float32, error) {
	var ms C.float
	if err := result("cuEventElapsedTime", C.cuEventElapsedTime(&ms,
		C.CUevent(unsafe.Pointer(uintptr(start))), C.CUevent(unsafe.Pointer(uintptr(end))))); err != nil {
		return 0, err
	}
	return float32(ms), nil
}

var _ driver.Driver = (*Driver)(nil)
