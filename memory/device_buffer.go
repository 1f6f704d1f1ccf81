package memory

import (
	"fmt"

	"github.com/fxnlabs/gpumem/driver"
)

// DeviceBuffer owns a contiguous device allocation of a fixed number of
// elements. Views into the buffer are DeviceSlice values; the buffer must
// outlive them.
//
// A zero-length buffer (or any length of a zero-sized T) makes no native
// allocation: its pointer is a dangling, non-null sentinel that is never
// dereferenced or freed.
type DeviceBuffer[T any] struct {
	ctx      *driver.Context
	base     driver.Ptr
	capacity int
	owned    bool // false once ownership moved out or never taken (sentinel)
}

// danglingPtr is the aligned, non-null sentinel used for buffers that made
// no allocation.
func danglingPtr[T any]() driver.Ptr {
	return driver.Ptr(alignOf[T]())
}

// UninitializedDeviceBuffer allocates size uninitialized elements. Reading
// any element before writing it is undefined behavior; the caller must
// initialize the buffer first.
func UninitializedDeviceBuffer[T any](ctx *driver.Context, size int) (*DeviceBuffer[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative buffer size %d", driver.ErrInvalidMemoryAllocation, size)
	}
	if size == 0 || sizeOf[T]() == 0 {
		return &DeviceBuffer[T]{ctx: ctx, base: danglingPtr[T](), capacity: size}, nil
	}
	p, err := MallocDevice[T](ctx, size)
	if err != nil {
		return nil, err
	}
	return &DeviceBuffer[T]{ctx: ctx, base: p.Raw(), capacity: size, owned: true}, nil
}

// ZeroedDeviceBuffer allocates size elements with every byte set to zero.
// The caller must ensure the all-zero bit pattern is a valid T, or write
// real values before reading.
func ZeroedDeviceBuffer[T any](ctx *driver.Context, size int) (*DeviceBuffer[T], error) {
	b, err := UninitializedDeviceBuffer[T](ctx, size)
	if err != nil {
		return nil, err
	}
	if b.owned {
		bytes := uintptr(size) * sizeOf[T]()
		if err := ctx.Driver().MemsetD8(b.base, 0, bytes); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// DeviceBufferFromSlice allocates a buffer the size of src and copies src
// into it.
func DeviceBufferFromSlice[T any](ctx *driver.Context, src []T) (*DeviceBuffer[T], error) {
	b, err := UninitializedDeviceBuffer[T](ctx, len(src))
	if err != nil {
		return nil, err
	}
	if err := b.Slice().CopyFromHost(src); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// DeviceBufferFromRawParts reassembles a buffer from a pointer and length
// previously taken apart with IntoRawParts. The pointer must have been
// allocated by this family with exactly this capacity, and nothing else may
// own it; the new buffer will free it.
func DeviceBufferFromRawParts[T any](ctx *driver.Context, p DevicePointer[T], capacity int) *DeviceBuffer[T] {
	owned := !p.IsNull() && capacity > 0 && sizeOf[T]() > 0 && p.Raw() != danglingPtr[T]()
	return &DeviceBuffer[T]{ctx: ctx, base: p.Raw(), capacity: capacity, owned: owned}
}

// IntoRawParts releases ownership, returning the pointer and capacity. The
// buffer is emptied; closing it afterwards is a no-op. The caller must pair
// the parts with DeviceBufferFromRawParts or FreeDevice to avoid a leak.
func (b *DeviceBuffer[T]) IntoRawParts() (DevicePointer[T], int) {
	p, n := WrapDevicePointer[T](b.base), b.capacity
	b.base = 0
	b.capacity = 0
	b.owned = false
	return p, n
}

// Len returns the number of elements in the buffer.
func (b *DeviceBuffer[T]) Len() int { return b.capacity }

// IsEmpty reports whether the buffer has no elements.
func (b *DeviceBuffer[T]) IsEmpty() bool { return b.capacity == 0 }

// AsDevicePointer returns a pointer to the first element.
func (b *DeviceBuffer[T]) AsDevicePointer() DevicePointer[T] {
	return WrapDevicePointer[T](b.base)
}

// Slice returns a view of the whole buffer.
func (b *DeviceBuffer[T]) Slice() DeviceSlice[T] {
	return DeviceSlice[T]{ctx: b.ctx, base: b.base, length: b.capacity}
}

// Range returns a view of the elements [start, end).
func (b *DeviceBuffer[T]) Range(start, end int) DeviceSlice[T] {
	return b.Slice().Range(start, end)
}

// Close releases the allocation. On failure the buffer still owns it and
// remains valid for retry. Closing a moved-out, zero-length or zero-sized
// buffer is a no-op.
func (b *DeviceBuffer[T]) Close() error {
	if !b.owned {
		return nil
	}
	if err := FreeDevice(b.ctx, WrapDevicePointer[T](b.base)); err != nil {
		return err
	}
	b.base = 0
	b.capacity = 0
	b.owned = false
	return nil
}

// MustClose releases the allocation and panics on failure. Intended for
// defer.
func (b *DeviceBuffer[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free device buffer: %v", err))
	}
}
