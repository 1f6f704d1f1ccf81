package memory

import (
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// DevicePointer is a typed address in device-exclusive memory. It is opaque
// to the host: there is no way to dereference it here. The zero value is the
// null pointer.
//
// Device pointers carry no ownership; the owning container (DeviceBox,
// DeviceBuffer) decides when the allocation is released, after which every
// pointer derived from it dangles.
type DevicePointer[T any] struct {
	raw driver.Ptr
}

// WrapDevicePointer adopts a raw address as a typed device pointer. The
// caller attests that raw is null or points into a live device allocation of
// T values.
func WrapDevicePointer[T any](raw driver.Ptr) DevicePointer[T] {
	return DevicePointer[T]{raw: raw}
}

// NullDevicePointer returns the null device pointer.
func NullDevicePointer[T any]() DevicePointer[T] {
	return DevicePointer[T]{}
}

// Raw returns the underlying address without dereferencing it.
func (p DevicePointer[T]) Raw() driver.Ptr { return p.raw }

// IsNull reports whether the pointer is null.
func (p DevicePointer[T]) IsNull() bool { return p.raw == 0 }

// Offset returns a pointer advanced by count elements. Like native pointer
// arithmetic, the result must stay within the same allocation; stepping
// outside it produces a pointer that is invalid to use in any copy or
// launch.
func (p DevicePointer[T]) Offset(count int) DevicePointer[T] {
	return DevicePointer[T]{raw: offsetPtr(p.raw, count, sizeOf[T]())}
}

// Add returns a pointer advanced by count elements.
func (p DevicePointer[T]) Add(count int) DevicePointer[T] { return p.Offset(count) }

// Sub returns a pointer moved back by count elements.
func (p DevicePointer[T]) Sub(count int) DevicePointer[T] { return p.Offset(-count) }

// UnifiedPointer is a typed address in unified memory, valid to dereference
// from host and device alike. The zero value is the null pointer.
type UnifiedPointer[T any] struct {
	raw driver.Ptr
}

// WrapUnifiedPointer adopts a raw address as a typed unified pointer. The
// caller attests that raw is null or points into a live unified allocation
// of T values.
func WrapUnifiedPointer[T any](raw driver.Ptr) UnifiedPointer[T] {
	return UnifiedPointer[T]{raw: raw}
}

// NullUnifiedPointer returns the null unified pointer.
func NullUnifiedPointer[T any]() UnifiedPointer[T] {
	return UnifiedPointer[T]{}
}

// Raw returns the underlying address without dereferencing it.
func (p UnifiedPointer[T]) Raw() driver.Ptr { return p.raw }

// IsNull reports whether the pointer is null.
func (p UnifiedPointer[T]) IsNull() bool { return p.raw == 0 }

// AsDevicePointer narrows the pointer's capability: the same address,
// usable wherever a device pointer is expected, no longer
// host-dereferenceable through the result.
func (p UnifiedPointer[T]) AsDevicePointer() DevicePointer[T] {
	return DevicePointer[T]{raw: p.raw}
}

// Ref dereferences the pointer on the host. The pointer must be non-null
// and the allocation still live.
func (p UnifiedPointer[T]) Ref() *T {
	if p.raw == 0 {
		panic("memory: dereference of null unified pointer")
	}
	return (*T)(unsafe.Pointer(uintptr(p.raw)))
}

// Offset returns a pointer advanced by count elements, with the same
// in-allocation contract as DevicePointer.Offset.
func (p UnifiedPointer[T]) Offset(count int) UnifiedPointer[T] {
	return UnifiedPointer[T]{raw: offsetPtr(p.raw, count, sizeOf[T]())}
}

// Add returns a pointer advanced by count elements.
func (p UnifiedPointer[T]) Add(count int) UnifiedPointer[T] { return p.Offset(count) }

// Sub returns a pointer moved back by count elements.
func (p UnifiedPointer[T]) Sub(count int) UnifiedPointer[T] { return p.Offset(-count) }

func offsetPtr(raw driver.Ptr, count int, elemSize uintptr) driver.Ptr {
	if count >= 0 {
		return raw + driver.Ptr(uintptr(count)*elemSize)
	}
	return raw - driver.Ptr(uintptr(-count)*elemSize)
}
