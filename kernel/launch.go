package kernel

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/internal/metrics"
	"github.com/fxnlabs/gpumem/memory"
	"github.com/fxnlabs/gpumem/stream"
)

// Launch enqueues f on s with the given geometry and arguments. Every
// argument must be a device-copyable value: a fixed-size scalar, an array
// or struct of such, or one of the typed device pointers. Arguments are
// copied into stable storage before the driver sees their addresses, so
// callers may pass loop variables and temporaries freely.
//
// Launch returns as soon as the work is submitted. A failure inside the
// kernel itself surfaces later, from Synchronize or from destroying the
// stream.
func Launch(s *stream.Stream, f Function, grid GridSize, block BlockSize, sharedMemBytes uint32, args ...any) error {
	if f.h == 0 {
		return fmt.Errorf("launch: nil function")
	}
	params := make([]driver.Ptr, len(args))
	holds := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			return fmt.Errorf("launch %s: argument %d is nil", f.name, i)
		}
		rt := reflect.TypeOf(arg)
		if err := memory.VerifyDeviceCopy(rt); err != nil {
			return fmt.Errorf("launch %s: argument %d: %w", f.name, i, err)
		}
		storage := reflect.New(rt)
		storage.Elem().Set(reflect.ValueOf(arg))
		holds[i] = storage
		params[i] = driver.Ptr(storage.Pointer())
	}
	err := s.Launch(f.h, dims(grid.X, grid.Y, grid.Z), dims(block.X, block.Y, block.Z), sharedMemBytes, params)
	runtime.KeepAlive(holds)
	if err != nil {
		return err
	}
	metrics.KernelLaunchesTotal.Inc()
	return nil
}
