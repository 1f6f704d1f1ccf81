package memory

import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// LockedBox owns one T in page-locked host memory. The memory is
// host-resident and directly readable and writable through Ref, but being
// page-locked it is also a legal endpoint for asynchronous transfers.
type LockedBox[T any] struct {
	ctx *driver.Context
	ptr driver.Ptr
}

// NewLockedBox allocates page-locked memory for one T and writes val into
// it.
func NewLockedBox[T any](ctx *driver.Context, val *T) (*LockedBox[T], error) {
	b, err := UninitializedLockedBox[T](ctx)
	if err != nil {
		return nil, err
	}
	if sizeOf[T]() > 0 {
		*b.Ref() = *val
	}
	return b, nil
}

// UninitializedLockedBox allocates page-locked memory for one T without
// initializing it. The caller must write the value before reading it.
func UninitializedLockedBox[T any](ctx *driver.Context) (*LockedBox[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if sizeOf[T]() == 0 {
		return &LockedBox[T]{ctx: ctx}, nil
	}
	p, err := MallocLocked[T](ctx, 1)
	if err != nil {
		return nil, err
	}
	return &LockedBox[T]{ctx: ctx, ptr: p}, nil
}

// Ref returns a host pointer to the boxed value. For a zero-sized T the
// returned pointer is a dangling sentinel that must not be used to observe
// memory (there is none).
func (b *LockedBox[T]) Ref() *T {
	if b.ptr == 0 {
		if sizeOf[T]() == 0 {
			return (*T)(unsafe.Pointer(alignOf[T]()))
		}
		panic("memory: dereference of empty locked box")
	}
	return (*T)(unsafe.Pointer(uintptr(b.ptr)))
}

// Value returns a copy of the boxed value.
func (b *LockedBox[T]) Value() T { return *b.Ref() }

// Set overwrites the boxed value.
func (b *LockedBox[T]) Set(val T) {
	if sizeOf[T]() == 0 {
		return
	}
	*b.Ref() = val
}

// hostPtr exposes the raw address for async transfers.
func (b *LockedBox[T]) hostPtr() driver.Ptr { return b.ptr }

// IntoRaw releases ownership of the allocation to the caller, who must pair
// it with LockedBoxFromRaw or FreeLocked.
func (b *LockedBox[T]) IntoRaw() driver.Ptr {
	p := b.ptr
	b.ptr = 0
	return p
}

// LockedBoxFromRaw adopts an address previously produced by IntoRaw or
// MallocLocked. The new box owns and will free it.
func LockedBoxFromRaw[T any](ctx *driver.Context, p driver.Ptr) *LockedBox[T] {
	return &LockedBox[T]{ctx: ctx, ptr: p}
}

// Close releases the allocation; on failure the box remains valid for
// retry. Closing an empty or zero-sized box is a no-op.
func (b *LockedBox[T]) Close() error {
	if b.ptr == 0 {
		return nil
	}
	if err := FreeLocked(b.ctx, b.ptr); err != nil {
		return err
	}
	b.ptr = 0
	return nil
}

// MustClose releases the allocation and panics on failure.
func (b *LockedBox[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free locked box: %v", err))
	}
}

// LockedBuffer owns a contiguous page-locked host allocation of a fixed
// number of elements. Because the memory is host-resident it can be read
// and written in place through AsSlice, and because it is page-locked it is
// a legal endpoint for asynchronous device transfers.
type LockedBuffer[T any] struct {
	ctx      *driver.Context
	base     driver.Ptr
	capacity int
	owned    bool
}

// NewLockedBuffer allocates size elements of page-locked memory, zeroed.
func NewLockedBuffer[T any](ctx *driver.Context, size int) (*LockedBuffer[T], error) {
	b, err := UninitializedLockedBuffer[T](ctx, size)
	if err != nil {
		return nil, err
	}
	if b.owned {
		s := b.AsSlice()
		var zero T
		for i := range s {
			s[i] = zero
		}
	}
	return b, nil
}

// UninitializedLockedBuffer allocates size elements of page-locked memory
// without initializing them.
func UninitializedLockedBuffer[T any](ctx *driver.Context, size int) (*LockedBuffer[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative buffer size %d", driver.ErrInvalidMemoryAllocation, size)
	}
	if size == 0 || sizeOf[T]() == 0 {
		return &LockedBuffer[T]{ctx: ctx, base: danglingPtr[T](), capacity: size}, nil
	}
	p, err := MallocLocked[T](ctx, size)
	if err != nil {
		return nil, err
	}
	return &LockedBuffer[T]{ctx: ctx, base: p, capacity: size, owned: true}, nil
}

// LockedBufferFromSlice allocates a buffer the size of src and copies src
// into it on the host.
func LockedBufferFromSlice[T any](ctx *driver.Context, src []T) (*LockedBuffer[T], error) {
	b, err := UninitializedLockedBuffer[T](ctx, len(src))
	if err != nil {
		return nil, err
	}
	copy(b.AsSlice(), src)
	return b, nil
}

// Len returns the number of elements in the buffer.
func (b *LockedBuffer[T]) Len() int { return b.capacity }

// IsEmpty reports whether the buffer has no elements.
func (b *LockedBuffer[T]) IsEmpty() bool { return b.capacity == 0 }

// AsSlice returns the buffer's contents as an ordinary Go slice for host
// reads and writes. The slice aliases the page-locked allocation and must
// not be used after the buffer is closed.
func (b *LockedBuffer[T]) AsSlice() []T {
	if b.capacity == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(uintptr(b.base))), b.capacity)
}

// Close releases the allocation; on failure the buffer remains valid for
// retry.
func (b *LockedBuffer[T]) Close() error {
	if !b.owned {
		return nil
	}
	if err := FreeLocked(b.ctx, b.base); err != nil {
		return err
	}
	b.base = 0
	b.capacity = 0
	b.owned = false
	return nil
}

// MustClose releases the allocation and panics on failure.
func (b *LockedBuffer[T]) MustClose() {
	if err := b.Close(); err != nil {
		panic(fmt.Sprintf("memory: failed to free locked buffer: %v", err))
	}
}
