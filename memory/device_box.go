package memory

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/stream"
)

// DeviceBox owns a device allocation holding exactly one T. The host cannot
// read or write the value directly; use the copy methods. For a zero-sized
// T no native allocation is made and the box holds the null pointer.
//
// A box releases its allocation exactly once, through Close or MustClose.
// IntoDevice transfers ownership out of the box, after which closing it is
// a no-op.
type DeviceBox[T any] struct {
	ctx *driver.Context
	ptr DevicePointer[T]
}

// NewDeviceBox allocates device memory for one T and copies val into it.
func NewDeviceBox[T any](ctx *driver.Context, val *T) (*DeviceBox[T], error) {
	b, err := UninitializedDeviceBox[T](ctx)
	if err != nil {
		return nil, err
	}
	if err := b.CopyFromHost(val); err != nil {
		// The copy failed after the allocation succeeded; give the
		// allocation back before reporting.
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// UninitializedDeviceBox allocates device memory for one T without
// initializing it. Reading the box (copying it to the host or to another
// box) before writing it is undefined behavior; the caller must initialize
// it first.
func UninitializedDeviceBox[T any](ctx *driver.Context) (*DeviceBox[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if sizeOf[T]() == 0 {
		return &DeviceBox[T]{ctx: ctx}, nil
	}
	p, err := MallocDevice[T](ctx, 1)
	if err != nil {
		return nil, err
	}
	return &DeviceBox[T]{ctx: ctx, ptr: p}, nil
}

// DeviceBoxFromDevice adopts a device pointer as an owned box. The pointer
// must have come from this family's allocator (MallocDevice or a box's
// IntoDevice) and must not be owned by anything else; the new box will free
// it.
func DeviceBoxFromDevice[T any](ctx *driver.Context, p DevicePointer[T]) *DeviceBox[T] {
	return &DeviceBox[T]{ctx: ctx, ptr: p}
}

// AsDevicePointer returns the box's pointer without transferring ownership.
func (b *DeviceBox[T]) AsDevicePointer() DevicePointer[T] { return b.ptr }

// IntoDevice releases ownership of the allocation to the caller. The box is
// left holding the null pointer, so closing it afterwards is a no-op; the
// caller must pair the returned pointer with FreeDevice or
// DeviceBoxFromDevice to avoid a leak.
func (b *DeviceBox[T]) IntoDevice() DevicePointer[T] {
	p := b.ptr
	b.ptr = NullDevicePointer[T]()
	return p
}

// CopyFromHost copies *val into the box (host to device).
func (b *DeviceBox[T]) CopyFromHost(val *T) error {
	bytes := sizeOf[T]()
	if bytes == 0 {
		return nil
	}
	src := driver.Ptr(uintptr(unsafe.Pointer(val)))
	err := b.ctx.Driver().Memcpy(b.ptr.Raw(), src, bytes, driver.MemcpyHostToDevice)
	runtime.KeepAlive(val)
	if err != nil {
		return err
	}
	recordCopy(driver.MemcpyHostToDevice, bytes)
	return nil
}

// CopyToHost copies the box's value into *val (device to host).
func (b *DeviceBox[T]) CopyToHost(val *T) error {
	bytes := sizeOf[T]()
	if bytes == 0 {
		return nil
	}
	dst := driver.Ptr(uintptr(unsafe.Pointer(val)))
	err := b.ctx.Driver().Memcpy(dst, b.ptr.Raw(), bytes, driver.MemcpyDeviceToHost)
	runtime.KeepAlive(val)
	if err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToHost, bytes)
	return nil
}

// CopyFromDevice copies another box's value into this one (device to
// device).
func (b *DeviceBox[T]) CopyFromDevice(src *DeviceBox[T]) error {
	bytes := sizeOf[T]()
	if bytes == 0 {
		return nil
	}
	if err := b.ctx.Driver().Memcpy(b.ptr.Raw(), src.ptr.Raw(), bytes, driver.MemcpyDeviceToDevice); err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToDevice, bytes)
	return nil
}

// CopyToDevice copies this box's value into another box.
func (b *DeviceBox[T]) CopyToDevice(dst *DeviceBox[T]) error {
	return dst.CopyFromDevice(b)
}

// CopyFromHostAsync enqueues a host-to-device copy of src's value on s and
// returns before the transfer completes. Until s is synchronized the caller
// must not close or mutate src, and must not read from or copy this box.
// The page-locked source is what makes the asynchronous transfer legal.
func (b *DeviceBox[T]) CopyFromHostAsync(s *stream.Stream, src *LockedBox[T]) error {
	bytes := sizeOf[T]()
	if bytes == 0 {
		return nil
	}
	if err := b.ctx.Driver().MemcpyAsync(b.ptr.Raw(), src.hostPtr(), bytes, driver.MemcpyHostToDevice, s.Handle()); err != nil {
		return err
	}
	recordCopy(driver.MemcpyHostToDevice, bytes)
	return nil
}

// CopyToHostAsync enqueues a device-to-host copy of the box's value into
// dst on s, with the same outstanding-transfer obligations as
// CopyFromHostAsync.
func (b *DeviceBox[T]) CopyToHostAsync(s *stream.Stream, dst *LockedBox[T]) error {
	bytes := sizeOf[T]()
	if bytes == 0 {
		return nil
	}
	if err := b.ctx.Driver().MemcpyAsync(dst.hostPtr(), b.ptr.Raw(), bytes, driver.MemcpyDeviceToHost, s.Handle()); err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToHost, bytes)
	return nil
}

// Close releases the allocation. On failure the box still owns it and
// remains valid, so the caller can inspect the error and retry or
// deliberately leak. Closing an empty or zero-sized box is a no-op.
func (b *DeviceBox[T]) Close() error {
	if b.ptr.IsNull() {
		return nil
	}
	if err := FreeDevice(b.ctx, b.ptr); err != nil {
		return err
	}
	b.ptr = NullDevicePointer[T]()
	return nil
}

// MustClose releases the allocation and panics on failure. Intended for
// defer, where no error channel exists.
func (b *DeviceBox[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free device box: %v", err))
	}
}
