// Package kernel loads compiled modules, resolves the functions and global
// symbols inside them, and launches kernels with typed, verified arguments.
package kernel

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/memory"
)

// Module is a loaded compiled kernel module. Functions and symbols resolved
// from it stay valid until the module is closed.
type Module struct {
	ctx *driver.Context
	h   driver.Module
}

// LoadModuleFromFile loads a compiled module from a file on disk.
func LoadModuleFromFile(ctx *driver.Context, path string) (*Module, error) {
	h, err := ctx.Driver().ModuleLoad(path)
	if err != nil {
		return nil, err
	}
	return &Module{ctx: ctx, h: h}, nil
}

// LoadModuleFromBytes loads a compiled module from an in-memory image.
func LoadModuleFromBytes(ctx *driver.Context, image []byte) (*Module, error) {
	h, err := ctx.Driver().ModuleLoadData(image)
	if err != nil {
		return nil, err
	}
	return &Module{ctx: ctx, h: h}, nil
}

// Context returns the context this module was loaded on.
func (m *Module) Context() *driver.Context { return m.ctx }

// GetFunction resolves a kernel function by name.
func (m *Module) GetFunction(name string) (Function, error) {
	if m.h == 0 {
		return Function{}, fmt.Errorf("get function %q: module is closed", name)
	}
	h, err := m.ctx.Driver().ModuleGetFunction(m.h, name)
	if err != nil {
		return Function{}, err
	}
	return Function{h: h, name: name}, nil
}

// Close unloads the module. Functions and symbols resolved from it become
// invalid. On failure the module remains loaded; closing an already-closed
// module is a no-op.
func (m *Module) Close() error {
	if m.h == 0 {
		return nil
	}
	if err := m.ctx.Driver().ModuleUnload(m.h); err != nil {
		return err
	}
	m.h = 0
	return nil
}

// MustClose unloads the module and panics on failure.
func (m *Module) MustClose() {
	if err := m.Close(); err != nil {
		panic(fmt.Sprintf("kernel: failed to unload module: %v", err))
	}
}

// Function is a kernel entry point resolved from a module. The zero value
// is no function.
type Function struct {
	h    driver.Function
	name string
}

// Name returns the name the function was resolved under.
func (f Function) Name() string { return f.name }

// Handle exposes the native handle.
func (f Function) Handle() driver.Function { return f.h }

// Symbol is a typed view over a named global variable in a loaded module.
// Symbols are owned by the module, never by the view; closing the module
// invalidates them and no Symbol method ever frees the memory.
type Symbol[T any] struct {
	ctx *driver.Context
	ptr driver.Ptr
}

// GetSymbol resolves a global variable by name and checks that its size in
// the module image matches T exactly.
func GetSymbol[T any](m *Module, name string) (*Symbol[T], error) {
	if m.h == 0 {
		return nil, fmt.Errorf("get symbol %q: module is closed", name)
	}
	if err := memory.VerifyDeviceCopy(reflect.TypeFor[T]()); err != nil {
		return nil, err
	}
	p, size, err := m.ctx.Driver().ModuleGetGlobal(m.h, name)
	if err != nil {
		return nil, err
	}
	if want := unsafe.Sizeof(*new(T)); size != want {
		return nil, fmt.Errorf("get symbol %q: module declares %d bytes, T is %d bytes", name, size, want)
	}
	return &Symbol[T]{ctx: m.ctx, ptr: p}, nil
}

// AsDevicePointer returns the symbol's address as a device pointer, usable
// as a kernel argument.
func (s *Symbol[T]) AsDevicePointer() memory.DevicePointer[T] {
	return memory.WrapDevicePointer[T](s.ptr)
}

// CopyFromHost overwrites the symbol with val.
func (s *Symbol[T]) CopyFromHost(val *T) error {
	n := unsafe.Sizeof(*val)
	if n == 0 {
		return nil
	}
	err := s.ctx.Driver().Memcpy(s.ptr,
		driver.Ptr(uintptr(unsafe.Pointer(val))), n, driver.MemcpyHostToDevice)
	runtime.KeepAlive(val)
	return err
}

// CopyToHost reads the symbol into val.
func (s *Symbol[T]) CopyToHost(val *T) error {
	n := unsafe.Sizeof(*val)
	if n == 0 {
		return nil
	}
	err := s.ctx.Driver().Memcpy(driver.Ptr(uintptr(unsafe.Pointer(val))),
		s.ptr, n, driver.MemcpyDeviceToHost)
	runtime.KeepAlive(val)
	return err
}

// CopyFromDevice overwrites the symbol from device memory at src.
func (s *Symbol[T]) CopyFromDevice(src memory.DevicePointer[T]) error {
	n := unsafe.Sizeof(*new(T))
	if n == 0 {
		return nil
	}
	return s.ctx.Driver().Memcpy(s.ptr, src.Raw(), n, driver.MemcpyDeviceToDevice)
}

// CopyToDevice writes the symbol's value into device memory at dst.
func (s *Symbol[T]) CopyToDevice(dst memory.DevicePointer[T]) error {
	n := unsafe.Sizeof(*new(T))
	if n == 0 {
		return nil
	}
	return s.ctx.Driver().Memcpy(dst.Raw(), s.ptr, n, driver.MemcpyDeviceToDevice)
}
