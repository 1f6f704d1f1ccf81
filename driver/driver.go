// Package driver defines the seam between the owned-memory layer and a
// CUDA-class compute driver. Everything above this package talks to the
// native runtime exclusively through the Driver interface, which makes the
// memory, stream, kernel and event packages testable against the simulated
// driver in driver/sim and runnable against the real one in driver/cuda.
package driver

// Ptr is a raw device-reachable address. It carries no type or ownership
// information; the memory package wraps it in typed pointers and owned
// containers.
type Ptr uintptr

// Opaque native handles. Zero means "no handle".
type (
	// Stream is a native work-queue handle.
	Stream uintptr
	// Module is a loaded kernel-module handle.
	Module uintptr
	// Function is a kernel-function handle resolved from a Module.
	Function uintptr
	// Event is a native event handle.
	Event uintptr
)

// MemcpyKind selects the direction of a memory transfer.
type MemcpyKind int

const (
	MemcpyHostToDevice MemcpyKind = iota
	MemcpyDeviceToHost
	MemcpyDeviceToDevice
	MemcpyHostToHost
)

func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToDevice:
		return "host_to_device"
	case MemcpyDeviceToHost:
		return "device_to_host"
	case MemcpyDeviceToDevice:
		return "device_to_device"
	case MemcpyHostToHost:
		return "host_to_host"
	default:
		return "unknown"
	}
}

// StreamFlags configure stream creation.
type StreamFlags uint32

const (
	// StreamDefault serializes with the legacy NULL stream.
	StreamDefault StreamFlags = 0x0
	// StreamNonBlocking does not synchronize with the legacy NULL stream.
	StreamNonBlocking StreamFlags = 0x1
)

// EventFlags configure event creation.
type EventFlags uint32

const (
	EventDefault       EventFlags = 0x0
	EventBlockingSync  EventFlags = 0x1
	EventDisableTiming EventFlags = 0x2
)

// CallbackFunc receives the completion status of all stream work enqueued
// before the callback was added. A nil error means prior work succeeded.
type CallbackFunc func(status error)

// Driver is the native surface the ownership layer is built on. All methods
// map one-to-one onto driver API calls; none of them retry, and native
// failures are surfaced verbatim as *Error values.
//
// Byte counts are always greater than zero: the callers reject zero-byte
// allocations and skip zero-byte copies before reaching the driver.
type Driver interface {
	// Init binds the given device as the current device for all subsequent
	// calls. It must be called once before any other method.
	Init(device int) error

	// DeviceCount reports the number of compute devices available.
	DeviceCount() (int, error)

	// DeviceName reports a human-readable name for the bound device.
	DeviceName() (string, error)

	// MemAlloc allocates device-exclusive memory.
	MemAlloc(bytes uintptr) (Ptr, error)
	// MemAllocManaged allocates unified memory, addressable from host and
	// device alike.
	MemAllocManaged(bytes uintptr) (Ptr, error)
	// MemAllocHost allocates page-locked host memory.
	MemAllocHost(bytes uintptr) (Ptr, error)

	// MemFree releases device or unified memory.
	MemFree(p Ptr) error
	// MemFreeHost releases page-locked host memory.
	MemFreeHost(p Ptr) error

	// Memcpy performs a synchronous copy of bytes from src to dst.
	Memcpy(dst, src Ptr, bytes uintptr, kind MemcpyKind) error
	// MemcpyAsync enqueues a copy on the given stream and returns
	// immediately. Host addresses must be page-locked.
	MemcpyAsync(dst, src Ptr, bytes uintptr, kind MemcpyKind, s Stream) error
	// MemsetD8 fills bytes of device-reachable memory with value.
	MemsetD8(dst Ptr, value byte, bytes uintptr) error

	// StreamCreate creates a stream with the given flags and priority.
	// Out-of-range priorities are clamped by the driver.
	StreamCreate(flags StreamFlags, priority int) (Stream, error)
	StreamDestroy(s Stream) error
	// StreamSynchronize blocks until all work enqueued on s has completed.
	StreamSynchronize(s Stream) error
	StreamGetFlags(s Stream) (StreamFlags, error)
	StreamGetPriority(s Stream) (int, error)
	// StreamAddCallback enqueues fn to run on a host thread once all prior
	// work on s completes. Callbacks on one stream fire in FIFO order.
	StreamAddCallback(s Stream, fn CallbackFunc) error
	// StreamWaitEvent makes future work on s wait until e has been reached.
	StreamWaitEvent(s Stream, e Event) error

	// LaunchKernel enqueues a kernel launch. params holds one opaque
	// address per kernel argument, each pointing at the argument's storage.
	LaunchKernel(f Function, gridX, gridY, gridZ, blockX, blockY, blockZ uint32, sharedMemBytes uint32, s Stream, params []Ptr) error

	// ModuleLoad loads a compiled kernel module from a file.
	ModuleLoad(path string) (Module, error)
	// ModuleLoadData loads a compiled kernel module from an in-memory image.
	ModuleLoadData(image []byte) (Module, error)
	ModuleUnload(m Module) error
	// ModuleGetFunction resolves a kernel function by name.
	ModuleGetFunction(m Module, name string) (Function, error)
	// ModuleGetGlobal resolves a named global allocation inside m, returning
	// its address and size in bytes.
	ModuleGetGlobal(m Module, name string) (Ptr, uintptr, error)

	EventCreate(flags EventFlags) (Event, error)
	EventDestroy(e Event) error
	// EventRecord captures the current position of s in e.
	EventRecord(e Event, s Stream) error
	// EventQuery reports whether all work captured by e has completed.
	EventQuery(e Event) (bool, error)
	EventSynchronize(e Event) error
	// EventElapsed reports the time elapsed between two recorded events in
	// milliseconds.
	EventElapsed(start, end Event) (float32, error)
}
