package memory

import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// UnifiedBox owns one T in unified memory, addressable from both host and
// device. Host access goes through Ref; device access goes through the
// pointer accessors.
type UnifiedBox[T any] struct {
	ctx *driver.Context
	ptr UnifiedPointer[T]
}

// NewUnifiedBox allocates unified memory for one T and writes val into it.
func NewUnifiedBox[T any](ctx *driver.Context, val *T) (*UnifiedBox[T], error) {
	b, err := UninitializedUnifiedBox[T](ctx)
	if err != nil {
		return nil, err
	}
	if sizeOf[T]() > 0 {
		*b.Ref() = *val
	}
	return b, nil
}

// UninitializedUnifiedBox allocates unified memory for one T without
// initializing it. The caller must write the value before reading it.
func UninitializedUnifiedBox[T any](ctx *driver.Context) (*UnifiedBox[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if sizeOf[T]() == 0 {
		return &UnifiedBox[T]{ctx: ctx}, nil
	}
	p, err := MallocUnified[T](ctx, 1)
	if err != nil {
		return nil, err
	}
	return &UnifiedBox[T]{ctx: ctx, ptr: p}, nil
}

// ZeroedUnifiedBox allocates unified memory for one T with every byte set
// to zero.
func ZeroedUnifiedBox[T any](ctx *driver.Context) (*UnifiedBox[T], error) {
	b, err := UninitializedUnifiedBox[T](ctx)
	if err != nil {
		return nil, err
	}
	if n := sizeOf[T](); n > 0 {
		if err := ctx.Driver().MemsetD8(b.ptr.Raw(), 0, n); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// Ref returns a host pointer to the boxed value. For a zero-sized T the
// returned pointer is a dangling sentinel that must not be used to observe
// memory (there is none).
func (b *UnifiedBox[T]) Ref() *T {
	if b.ptr.IsNull() {
		if sizeOf[T]() == 0 {
			return (*T)(unsafe.Pointer(alignOf[T]()))
		}
		panic("memory: dereference of empty unified box")
	}
	return b.ptr.Ref()
}

// Value returns a copy of the boxed value.
func (b *UnifiedBox[T]) Value() T { return *b.Ref() }

// Set overwrites the boxed value.
func (b *UnifiedBox[T]) Set(val T) {
	if sizeOf[T]() == 0 {
		return
	}
	*b.Ref() = val
}

// AsUnifiedPointer returns the box's unified pointer.
func (b *UnifiedBox[T]) AsUnifiedPointer() UnifiedPointer[T] { return b.ptr }

// AsDevicePointer returns the box's address narrowed to device-only use,
// suitable as a kernel argument.
func (b *UnifiedBox[T]) AsDevicePointer() DevicePointer[T] { return b.ptr.AsDevicePointer() }

// IntoUnified releases ownership of the allocation to the caller, who must
// pair it with UnifiedBoxFromUnified or FreeUnified. The box is left empty.
func (b *UnifiedBox[T]) IntoUnified() UnifiedPointer[T] {
	p := b.ptr
	b.ptr = NullUnifiedPointer[T]()
	return p
}

// UnifiedBoxFromUnified adopts a pointer previously produced by
// IntoUnified or MallocUnified. The new box owns and will free it.
func UnifiedBoxFromUnified[T any](ctx *driver.Context, p UnifiedPointer[T]) *UnifiedBox[T] {
	return &UnifiedBox[T]{ctx: ctx, ptr: p}
}

// Close releases the allocation; on failure the box remains valid for
// retry. Closing an empty or zero-sized box is a no-op.
func (b *UnifiedBox[T]) Close() error {
	if b.ptr.IsNull() {
		return nil
	}
	if err := FreeUnified(b.ctx, b.ptr); err != nil {
		return err
	}
	b.ptr = NullUnifiedPointer[T]()
	return nil
}

// MustClose releases the allocation and panics on failure.
func (b *UnifiedBox[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free unified box: %v", err))
	}
}

// UnifiedBuffer owns a contiguous unified-memory allocation of a fixed
// number of elements, addressable from both host and device.
type UnifiedBuffer[T any] struct {
	ctx      *driver.Context
	base     UnifiedPointer[T]
	capacity int
	owned    bool
}

// UninitializedUnifiedBuffer allocates size elements of unified memory
// without initializing them.
func UninitializedUnifiedBuffer[T any](ctx *driver.Context, size int) (*UnifiedBuffer[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative buffer size %d", driver.ErrInvalidMemoryAllocation, size)
	}
	if size == 0 || sizeOf[T]() == 0 {
		return &UnifiedBuffer[T]{
			ctx:      ctx,
			base:     WrapUnifiedPointer[T](danglingPtr[T]()),
			capacity: size,
		}, nil
	}
	p, err := MallocUnified[T](ctx, size)
	if err != nil {
		return nil, err
	}
	return &UnifiedBuffer[T]{ctx: ctx, base: p, capacity: size, owned: true}, nil
}

// ZeroedUnifiedBuffer allocates size elements of unified memory with every
// byte set to zero.
func ZeroedUnifiedBuffer[T any](ctx *driver.Context, size int) (*UnifiedBuffer[T], error) {
	b, err := UninitializedUnifiedBuffer[T](ctx, size)
	if err != nil {
		return nil, err
	}
	if b.owned {
		if err := ctx.Driver().MemsetD8(b.base.Raw(), 0, sizeOf[T]()*uintptr(size)); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// UnifiedBufferFromSlice allocates a buffer the size of src and copies src
// into it on the host.
func UnifiedBufferFromSlice[T any](ctx *driver.Context, src []T) (*UnifiedBuffer[T], error) {
	b, err := UninitializedUnifiedBuffer[T](ctx, len(src))
	if err != nil {
		return nil, err
	}
	copy(b.AsSlice(), src)
	return b, nil
}

// Len returns the number of elements in the buffer.
func (b *UnifiedBuffer[T]) Len() int { return b.capacity }

// IsEmpty reports whether the buffer has no elements.
func (b *UnifiedBuffer[T]) IsEmpty() bool { return b.capacity == 0 }

// AsUnifiedPointer returns a unified pointer to the first element.
func (b *UnifiedBuffer[T]) AsUnifiedPointer() UnifiedPointer[T] { return b.base }

// AsSlice returns the buffer's contents as an ordinary Go slice for host
// reads and writes. The slice aliases the unified allocation and must not
// be used after the buffer is closed.
func (b *UnifiedBuffer[T]) AsSlice() []T {
	if b.capacity == 0 {
		return nil
	}
	return unsafe.Slice(b.base.Ref(), b.capacity)
}

// AsDeviceSlice returns a device-only view over the buffer, suitable for
// the device copy methods and kernel arguments. The view does not own the
// memory.
func (b *UnifiedBuffer[T]) AsDeviceSlice() DeviceSlice[T] {
	return DeviceSlice[T]{ctx: b.ctx, base: b.base.Raw(), length: b.capacity}
}

// Close releases the allocation; on failure the buffer remains valid for
// retry.
func (b *UnifiedBuffer[T]) Close() error {
	if !b.owned {
		return nil
	}
	if err := FreeUnified(b.ctx, b.base); err != nil {
		return err
	}
	b.base = NullUnifiedPointer[T]()
	b.capacity = 0
	b.owned = false
	return nil
}

// MustClose releases the allocation and panics on failure.
func (b *UnifiedBuffer[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free unified buffer: %v", err))
	}
}
