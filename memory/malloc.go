package memory

import (
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/internal/metrics"
)

// allocSizes remembers the byte size of every live raw allocation so the
// allocated-bytes gauge can be decremented on free without widening the free
// functions' signatures.
var allocSizes sync.Map // driver.Ptr -> uintptr

// byteSize computes count * sizeof(T) with overflow checking. A zero result
// (zero count or zero-sized T) and a negative count are rejected before any
// native call, as is an overflowing multiplication.
func byteSize[T any](count int) (uintptr, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: negative element count %d", driver.ErrInvalidMemoryAllocation, count)
	}
	hi, lo := bits.Mul(uint(count), uint(sizeOf[T]()))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d elements of %d bytes overflows", driver.ErrInvalidMemoryAllocation, count, sizeOf[T]())
	}
	if lo == 0 {
		return 0, fmt.Errorf("%w: zero-byte allocation", driver.ErrInvalidMemoryAllocation)
	}
	return uintptr(lo), nil
}

func recordAlloc(ctx *driver.Context, space string, p driver.Ptr, bytes uintptr) {
	allocSizes.Store(p, bytes)
	metrics.AllocationsTotal.WithLabelValues(space).Inc()
	metrics.MemoryAllocatedBytes.WithLabelValues(space).Add(float64(bytes))
	ctx.Log().Debug("allocated",
		zap.String("space", space),
		zap.Uint64("bytes", uint64(bytes)),
		zap.Uint64("ptr", uint64(p)))
}

func recordFree(ctx *driver.Context, space string, p driver.Ptr) {
	if v, ok := allocSizes.LoadAndDelete(p); ok {
		metrics.MemoryAllocatedBytes.WithLabelValues(space).Sub(float64(v.(uintptr)))
	}
	metrics.FreesTotal.WithLabelValues(space).Inc()
	ctx.Log().Debug("freed", zap.String("space", space), zap.Uint64("ptr", uint64(p)))
}

// MallocDevice allocates count uninitialized T values in device-exclusive
// memory. Reading the memory before writing it is undefined behavior; that
// obligation is the caller's. The returned pointer must be released with
// FreeDevice.
func MallocDevice[T any](ctx *driver.Context, count int) (DevicePointer[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return NullDevicePointer[T](), err
	}
	bytes, err := byteSize[T](count)
	if err != nil {
		return NullDevicePointer[T](), err
	}
	p, err := ctx.Driver().MemAlloc(bytes)
	if err != nil {
		return NullDevicePointer[T](), err
	}
	recordAlloc(ctx, metrics.SpaceDevice, p, bytes)
	return WrapDevicePointer[T](p), nil
}

// MallocUnified allocates count uninitialized T values in unified memory.
// The returned pointer must be released with FreeUnified.
func MallocUnified[T any](ctx *driver.Context, count int) (UnifiedPointer[T], error) {
	if err := assertDeviceCopy[T](); err != nil {
		return NullUnifiedPointer[T](), err
	}
	bytes, err := byteSize[T](count)
	if err != nil {
		return NullUnifiedPointer[T](), err
	}
	p, err := ctx.Driver().MemAllocManaged(bytes)
	if err != nil {
		return NullUnifiedPointer[T](), err
	}
	recordAlloc(ctx, metrics.SpaceUnified, p, bytes)
	return WrapUnifiedPointer[T](p), nil
}

// MallocLocked allocates count uninitialized T values in page-locked host
// memory. The returned address is host-dereferenceable and must be released
// with FreeLocked.
func MallocLocked[T any](ctx *driver.Context, count int) (driver.Ptr, error) {
	if err := assertDeviceCopy[T](); err != nil {
		return 0, err
	}
	bytes, err := byteSize[T](count)
	if err != nil {
		return 0, err
	}
	p, err := ctx.Driver().MemAllocHost(bytes)
	if err != nil {
		return 0, err
	}
	recordAlloc(ctx, metrics.SpaceLocked, p, bytes)
	return p, nil
}

// FreeDevice releases memory allocated with MallocDevice. Freeing the null
// pointer is an error; the driver is never called for it.
func FreeDevice[T any](ctx *driver.Context, p DevicePointer[T]) error {
	if p.IsNull() {
		return driver.ErrNullPointer
	}
	if err := ctx.Driver().MemFree(p.Raw()); err != nil {
		return err
	}
	recordFree(ctx, metrics.SpaceDevice, p.Raw())
	return nil
}

// FreeUnified releases memory allocated with MallocUnified.
func FreeUnified[T any](ctx *driver.Context, p UnifiedPointer[T]) error {
	if p.IsNull() {
		return driver.ErrNullPointer
	}
	if err := ctx.Driver().MemFree(p.Raw()); err != nil {
		return err
	}
	recordFree(ctx, metrics.SpaceUnified, p.Raw())
	return nil
}

// FreeLocked releases memory allocated with MallocLocked.
func FreeLocked(ctx *driver.Context, p driver.Ptr) error {
	if p == 0 {
		return driver.ErrNullPointer
	}
	if err := ctx.Driver().MemFreeHost(p); err != nil {
		return err
	}
	recordFree(ctx, metrics.SpaceLocked, p)
	return nil
}

func recordCopy(kind driver.MemcpyKind, bytes uintptr) {
	metrics.CopiesTotal.WithLabelValues(kind.String()).Inc()
	metrics.CopiedBytesTotal.WithLabelValues(kind.String()).Add(float64(bytes))
}
