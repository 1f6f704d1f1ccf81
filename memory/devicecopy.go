// Package memory provides owned, typed views of the three device-reachable
// memory spaces: device-exclusive, unified (host/device shared) and
// page-locked host memory. Containers own exactly one native allocation and
// release it exactly once; copies between host and device go through the
// CopyFromHost/CopyToHost and CopyFromDevice/CopyToDevice method families,
// with Async variants that enqueue on a stream and require page-locked host
// memory.
//
// Every allocation and copy entry point is gated on the value type being
// device-copyable: plain bits, with no references to memory the device
// cannot reach. The check walks the type once with reflection and caches the
// verdict; see VerifyDeviceCopy.
package memory

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fxnlabs/gpumem/driver"
)

var deviceCopyCache sync.Map // reflect.Type -> error (nil when accepted)

// VerifyDeviceCopy reports whether values of type t may be placed in
// device-reachable memory. A type qualifies when it is composed exclusively
// of fixed-width scalars: booleans, integers (including uintptr), floats,
// complex numbers, and arrays or structs of qualifying types. Pointers,
// slices, strings, maps, channels, funcs and interfaces are host references
// and are rejected.
//
// The verdict is cached per type; the reflective walk runs once.
func VerifyDeviceCopy(t reflect.Type) error {
	if cached, ok := deviceCopyCache.Load(t); ok {
		if cached == nil {
			return nil
		}
		return cached.(error)
	}
	err := verifyType(t, t)
	if err == nil {
		deviceCopyCache.Store(t, nil)
	} else {
		deviceCopyCache.Store(t, err)
	}
	return err
}

func verifyType(root, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return verifyType(root, t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := verifyType(root, t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		if root == t {
			return fmt.Errorf("%w: %s is of kind %s", driver.ErrNotDeviceCopy, root, t.Kind())
		}
		return fmt.Errorf("%w: %s contains a %s of kind %s", driver.ErrNotDeviceCopy, root, t, t.Kind())
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// assertDeviceCopy gates the generic entry points.
func assertDeviceCopy[T any]() error {
	return VerifyDeviceCopy(typeOf[T]())
}

func sizeOf[T any]() uintptr {
	return typeOf[T]().Size()
}

func alignOf[T any]() uintptr {
	return uintptr(typeOf[T]().Align())
}
