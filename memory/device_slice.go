package memory

import (
	"fmt"
	"iter"
	"runtime"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/stream"
)

// DeviceSlice is a borrowed view of a contiguous range of device memory. It
// does not own the allocation; the backing DeviceBuffer must outlive every
// slice derived from it. Like DevicePointer, it cannot be dereferenced on
// the host.
//
// Length-mismatched copies, zero chunk sizes and out-of-range splits are
// programmer errors and panic; driver failures are returned as errors.
type DeviceSlice[T any] struct {
	ctx    *driver.Context
	base   driver.Ptr
	length int
}

// Len returns the number of elements in the slice.
func (s DeviceSlice[T]) Len() int { return s.length }

// IsEmpty reports whether the slice has no elements.
func (s DeviceSlice[T]) IsEmpty() bool { return s.length == 0 }

// AsDevicePointer returns a pointer to the first element.
func (s DeviceSlice[T]) AsDevicePointer() DevicePointer[T] {
	return WrapDevicePointer[T](s.base)
}

// At returns a pointer to element i.
func (s DeviceSlice[T]) At(i int) DevicePointer[T] {
	if i < 0 || i >= s.length {
		panic(fmt.Sprintf("memory: index %d out of range for device slice of length %d", i, s.length))
	}
	return s.AsDevicePointer().Offset(i)
}

// Range returns the sub-slice [start, end). Both bounds are in elements;
// start may equal end, producing an empty view. Out-of-range bounds panic.
func (s DeviceSlice[T]) Range(start, end int) DeviceSlice[T] {
	if start < 0 || end < start || end > s.length {
		panic(fmt.Sprintf("memory: range [%d:%d] out of bounds for device slice of length %d", start, end, s.length))
	}
	return DeviceSlice[T]{
		ctx:    s.ctx,
		base:   offsetPtr(s.base, start, sizeOf[T]()),
		length: end - start,
	}
}

// From returns the sub-slice [start, len).
func (s DeviceSlice[T]) From(start int) DeviceSlice[T] { return s.Range(start, s.length) }

// To returns the sub-slice [0, end).
func (s DeviceSlice[T]) To(end int) DeviceSlice[T] { return s.Range(0, end) }

// SplitAt divides the slice into [0, mid) and [mid, len). Panics if mid is
// past the end. For every valid mid, the two halves' lengths sum to the
// original length.
func (s DeviceSlice[T]) SplitAt(mid int) (DeviceSlice[T], DeviceSlice[T]) {
	if mid < 0 || mid > s.length {
		panic(fmt.Sprintf("memory: split index %d out of range for device slice of length %d", mid, s.length))
	}
	return s.To(mid), s.From(mid)
}

// Chunks iterates over consecutive sub-slices of chunkSize elements. The
// final chunk is shorter when the length does not divide evenly. Panics if
// chunkSize is zero.
func (s DeviceSlice[T]) Chunks(chunkSize int) iter.Seq[DeviceSlice[T]] {
	if chunkSize <= 0 {
		panic("memory: chunk size must be positive")
	}
	return func(yield func(DeviceSlice[T]) bool) {
		for start := 0; start < s.length; start += chunkSize {
			end := start + chunkSize
			if end > s.length {
				end = s.length
			}
			if !yield(s.Range(start, end)) {
				return
			}
		}
	}
}

func (s DeviceSlice[T]) assertSameLen(op string, n int) {
	if n != s.length {
		panic(fmt.Sprintf("memory: %s length mismatch: source %d, destination %d", op, n, s.length))
	}
}

// CopyFromHost copies src into the slice (host to device). Panics if the
// lengths differ; a zero-length copy is a no-op.
func (s DeviceSlice[T]) CopyFromHost(src []T) error {
	s.assertSameLen("copy from host", len(src))
	if s.length == 0 || sizeOf[T]() == 0 {
		return nil
	}
	bytes := uintptr(s.length) * sizeOf[T]()
	p := driver.Ptr(uintptr(unsafe.Pointer(&src[0])))
	err := s.ctx.Driver().Memcpy(s.base, p, bytes, driver.MemcpyHostToDevice)
	runtime.KeepAlive(src)
	if err != nil {
		return err
	}
	recordCopy(driver.MemcpyHostToDevice, bytes)
	return nil
}

// CopyToHost copies the slice into dst (device to host). Panics if the
// lengths differ; a zero-length copy is a no-op.
func (s DeviceSlice[T]) CopyToHost(dst []T) error {
	s.assertSameLen("copy to host", len(dst))
	if s.length == 0 || sizeOf[T]() == 0 {
		return nil
	}
	bytes := uintptr(s.length) * sizeOf[T]()
	p := driver.Ptr(uintptr(unsafe.Pointer(&dst[0])))
	err := s.ctx.Driver().Memcpy(p, s.base, bytes, driver.MemcpyDeviceToHost)
	runtime.KeepAlive(dst)
	if err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToHost, bytes)
	return nil
}

// CopyFromDevice copies src into the slice (device to device). Panics if
// the lengths differ.
func (s DeviceSlice[T]) CopyFromDevice(src DeviceSlice[T]) error {
	s.assertSameLen("copy from device", src.length)
	if s.length == 0 || sizeOf[T]() == 0 {
		return nil
	}
	bytes := uintptr(s.length) * sizeOf[T]()
	if err := s.ctx.Driver().Memcpy(s.base, src.base, bytes, driver.MemcpyDeviceToDevice); err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToDevice, bytes)
	return nil
}

// CopyToDevice copies the slice into dst (device to device).
func (s DeviceSlice[T]) CopyToDevice(dst DeviceSlice[T]) error {
	return dst.CopyFromDevice(s)
}

// CopyFromHostAsync enqueues a host-to-device copy from the page-locked
// buffer src on st and returns before the transfer completes. Until st is
// synchronized the caller must not close or mutate src, and must not read
// this range through any view. Panics if the lengths differ.
func (s DeviceSlice[T]) CopyFromHostAsync(st *stream.Stream, src *LockedBuffer[T]) error {
	s.assertSameLen("async copy from host", src.Len())
	if s.length == 0 || sizeOf[T]() == 0 {
		return nil
	}
	bytes := uintptr(s.length) * sizeOf[T]()
	if err := s.ctx.Driver().MemcpyAsync(s.base, src.base, bytes, driver.MemcpyHostToDevice, st.Handle()); err != nil {
		return err
	}
	recordCopy(driver.MemcpyHostToDevice, bytes)
	return nil
}

// CopyToHostAsync enqueues a device-to-host copy into the page-locked
// buffer dst on st, with the same outstanding-transfer obligations as
// CopyFromHostAsync. Panics if the lengths differ.
func (s DeviceSlice[T]) CopyToHostAsync(st *stream.Stream, dst *LockedBuffer[T]) error {
	s.assertSameLen("async copy to host", dst.Len())
	if s.length == 0 || sizeOf[T]() == 0 {
		return nil
	}
	bytes := uintptr(s.length) * sizeOf[T]()
	if err := s.ctx.Driver().MemcpyAsync(dst.base, s.base, bytes, driver.MemcpyDeviceToHost, st.Handle()); err != nil {
		return err
	}
	recordCopy(driver.MemcpyDeviceToHost, bytes)
	return nil
}
