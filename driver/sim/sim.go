// Package sim implements driver.Driver entirely in host memory. Allocations
// in all three spaces are backed by the Go heap, so unified and page-locked
// pointers are genuinely host-dereferenceable, and each stream is a FIFO
// worker goroutine, so ordering and callback semantics behave like the real
// queue. Kernels are host-side Go functions registered by name.
//
// The simulator is the default driver for tests and for machines without a
// compute device. It tracks allocation and copy counters so tests can assert
// that zero-sized operations never reach the driver.
package sim

import (
	"sync"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// memory spaces for allocation bookkeeping
type space int

const (
	spaceDevice space = iota
	spaceUnified
	spaceHost
)

type allocation struct {
	buf   []byte
	space space
}

// Stats counts native operations performed by the simulator.
type Stats struct {
	DeviceAllocs  int64
	UnifiedAllocs int64
	HostAllocs    int64
	Frees         int64
	Copies        int64
	AsyncCopies   int64
	Memsets       int64
	Launches      int64
}

// Driver is a simulated compute driver. The zero value is not usable; call
// New.
type Driver struct {
	mu          sync.Mutex
	initialized bool
	device      int
	deviceName  string

	allocs  map[driver.Ptr]*allocation
	streams map[driver.Stream]*simStream
	modules map[driver.Module]*simModule
	events  map[driver.Event]*simEvent

	kernels   map[string]KernelFunc
	globals   map[string]uintptr // name -> size in bytes
	functions map[driver.Function]*simFunction

	nextHandle uintptr
	stats      Stats
}

// New creates a simulated driver with one device.
func New() *Driver {
	return &Driver{
		deviceName: "Simulated Device 0",
		allocs:     make(map[driver.Ptr]*allocation),
		streams:    make(map[driver.Stream]*simStream),
		modules:    make(map[driver.Module]*simModule),
		events:     make(map[driver.Event]*simEvent),
		kernels:    make(map[string]KernelFunc),
		globals:    make(map[string]uintptr),
		functions:  make(map[driver.Function]*simFunction),
		nextHandle: 1,
	}
}

// Stats returns a snapshot of the operation counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Driver) handle() uintptr {
	h := d.nextHandle
	d.nextHandle++
	return h
}

// Init binds the device. The simulator exposes exactly one device.
func (d *Driver) Init(device int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if device != 0 {
		return driver.Errorf("cuInit", driver.ErrorInvalidDevice)
	}
	d.device = device
	d.initialized = true
	return nil
}

func (d *Driver) DeviceCount() (int, error) { return 1, nil }

func (d *Driver) DeviceName() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return "", driver.Errorf("cuDeviceGetName", driver.ErrorNotInitialized)
	}
	return d.deviceName, nil
}

func (d *Driver) ensureInit(op string) error {
	if !d.initialized {
		return driver.Errorf(op, driver.ErrorNotInitialized)
	}
	return nil
}

func (d *Driver) alloc(op string, bytes uintptr, sp space) (driver.Ptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(op); err != nil {
		return 0, err
	}
	if bytes == 0 {
		return 0, driver.Errorf(op, driver.ErrorInvalidValue)
	}
	buf := make([]byte, bytes)
	p := driver.Ptr(uintptr(unsafe.Pointer(&buf[0])))
	d.allocs[p] = &allocation{buf: buf, space: sp}
	switch sp {
	case spaceDevice:
		d.stats.DeviceAllocs++
	case spaceUnified:
		d.stats.UnifiedAllocs++
	case spaceHost:
		d.stats.HostAllocs++
	}
	return p, nil
}

func (d *Driver) MemAlloc(bytes uintptr) (driver.Ptr, error) {
	return d.alloc("cuMemAlloc", bytes, spaceDevice)
}

func (d *Driver) MemAllocManaged(bytes uintptr) (driver.Ptr, error) {
	return d.alloc("cuMemAllocManaged", bytes, spaceUnified)
}

func (d *Driver) MemAllocHost(bytes uintptr) (driver.Ptr, error) {
	return d.alloc("cuMemAllocHost", bytes, spaceHost)
}

func (d *Driver) free(op string, p driver.Ptr, host bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[p]
	if !ok {
		// Unknown base address: double free or a pointer the simulator
		// never handed out.
		return driver.Errorf(op, driver.ErrorInvalidValue)
	}
	if host != (a.space == spaceHost) {
		return driver.Errorf(op, driver.ErrorInvalidValue)
	}
	delete(d.allocs, p)
	d.stats.Frees++
	return nil
}

func (d *Driver) MemFree(p driver.Ptr) error {
	return d.free("cuMemFree", p, false)
}

func (d *Driver) MemFreeHost(p driver.Ptr) error {
	return d.free("cuMemFreeHost", p, true)
}

// checkRange verifies that [p, p+n) stays inside a single simulated
// allocation. Addresses the simulator never handed out are assumed to be
// ordinary host memory and are not checked.
func (d *Driver) checkRange(op string, p driver.Ptr, n uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for base, a := range d.allocs {
		if p >= base && uintptr(p) < uintptr(base)+uintptr(len(a.buf)) {
			if uintptr(p)+n > uintptr(base)+uintptr(len(a.buf)) {
				return driver.Errorf(op, driver.ErrorIllegalAddress)
			}
			return nil
		}
	}
	return nil
}

func memmoveBytes(dst, src driver.Ptr, n uintptr) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), n)
	s := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(src))), n)
	copy(d, s)
}

func (d *Driver) Memcpy(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind) error {
	if dst == 0 || src == 0 {
		return driver.Errorf("cuMemcpy", driver.ErrorInvalidValue)
	}
	if err := d.checkRange("cuMemcpy", dst, bytes); err != nil {
		return err
	}
	if err := d.checkRange("cuMemcpy", src, bytes); err != nil {
		return err
	}
	memmoveBytes(dst, src, bytes)
	d.mu.Lock()
	d.stats.Copies++
	d.mu.Unlock()
	return nil
}

func (d *Driver) MemcpyAsync(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind, s driver.Stream) error {
	if dst == 0 || src == 0 {
		return driver.Errorf("cuMemcpyAsync", driver.ErrorInvalidValue)
	}
	st, err := d.stream("cuMemcpyAsync", s)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.stats.AsyncCopies++
	d.mu.Unlock()
	st.enqueue(func() error {
		memmoveBytes(dst, src, bytes)
		return nil
	})
	return nil
}

func (d *Driver) MemsetD8(dst driver.Ptr, value byte, bytes uintptr) error {
	if dst == 0 {
		return driver.Errorf("cuMemsetD8", driver.ErrorInvalidValue)
	}
	if err := d.checkRange("cuMemsetD8", dst, bytes); err != nil {
		return err
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), bytes)
	for i := range buf {
		buf[i] = value
	}
	d.mu.Lock()
	d.stats.Memsets++
	d.mu.Unlock()
	return nil
}

var _ driver.Driver = (*Driver)(nil)
