//go:build !cuda
// +build !cuda

package cuda

import (
	"github.com/fxnlabs/gpumem/driver"
)

// Driver is a stub when the binary is built without the cuda tag. Every
// method reports the driver as unavailable; use driver/sim instead.
type Driver struct{}

// New creates a stub CUDA driver.
func New() *Driver { return &Driver{} }

func (d *Driver) Init(device int) error       { return driver.ErrDriverUnavailable }
func (d *Driver) DeviceCount() (int, error)   { return 0, driver.ErrDriverUnavailable }
func (d *Driver) DeviceName() (string, error) { return "", driver.ErrDriverUnavailable }

func (d *Driver) MemAlloc(bytes uintptr) (driver.Ptr, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) MemAllocManaged(bytes uintptr) (driver.Ptr, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) MemAllocHost(bytes uintptr) (driver.Ptr, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) MemFree(p driver.Ptr) error     { return driver.ErrDriverUnavailable }
func (d *Driver) MemFreeHost(p driver.Ptr) error { return driver.ErrDriverUnavailable }

func (d *Driver) Memcpy(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) MemcpyAsync(dst, src driver.Ptr, bytes uintptr, kind driver.MemcpyKind, s driver.Stream) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) MemsetD8(dst driver.Ptr, value byte, bytes uintptr) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) StreamCreate(flags driver.StreamFlags, priority int) (driver.Stream, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) StreamDestroy(s driver.Stream) error     { return driver.ErrDriverUnavailable }
func (d *Driver) StreamSynchronize(s driver.Stream) error { return driver.ErrDriverUnavailable }

func (d *Driver) StreamGetFlags(s driver.Stream) (driver.StreamFlags, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) StreamGetPriority(s driver.Stream) (int, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) StreamAddCallback(s driver.Stream, fn driver.CallbackFunc) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) StreamWaitEvent(s driver.Stream, e driver.Event) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) LaunchKernel(f driver.Function, gridX, gridY, gridZ, blockX, blockY, blockZ uint32, sharedMemBytes uint32, s driver.Stream, params []driver.Ptr) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) ModuleLoad(path string) (driver.Module, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) ModuleLoadData(image []byte) (driver.Module, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) ModuleUnload(m driver.Module) error { return driver.ErrDriverUnavailable }

func (d *Driver) ModuleGetFunction(m driver.Module, name string) (driver.Function, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) ModuleGetGlobal(m driver.Module, name string) (driver.Ptr, uintptr, error) {
	return 0, 0, driver.ErrDriverUnavailable
}

func (d *Driver) EventCreate(flags driver.EventFlags) (driver.Event, error) {
	return 0, driver.ErrDriverUnavailable
}

func (d *Driver) EventDestroy(e driver.Event) error           { return driver.ErrDriverUnavailable }
func (d *Driver) EventRecord(e driver.Event, s driver.Stream) error {
	return driver.ErrDriverUnavailable
}

func (d *Driver) EventQuery(e driver.Event) (bool, error) {
	return false, driver.ErrDriverUnavailable
}

func (d *Driver) EventSynchronize(e driver.Event) error { return driver.ErrDriverUnavailable }

func (d *Driver) EventElapsed(start, end driver.Event) (float32, error) {
	return 0, driver.ErrDriverUnavailable
}

var _ driver.Driver = (*Driver)(nil)
