package sim

import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
)

// Dim3 is a launch geometry triple.
type Dim3 struct {
	X, Y, Z uint32
}

// KernelFunc is a host-side kernel implementation. params holds one entry
// per kernel argument; each entry points at that argument's storage, exactly
// as the native launch call receives them. Use ParamValue to read an
// argument.
type KernelFunc func(gridDim, blockDim Dim3, sharedMemBytes uint32, params []driver.Ptr) error

// ParamValue reads the i-th kernel argument as a T.
func ParamValue[T any](params []driver.Ptr, i int) T {
	return *(*T)(unsafe.Pointer(uintptr(params[i])))
}

type simModule struct {
	globals map[string]driver.Ptr
}

type simFunction struct {
	name string
	impl KernelFunc
}

// RegisterKernel makes a host-side kernel implementation resolvable by name
// through ModuleGetFunction. Simulated modules share one kernel namespace.
func (d *Driver) RegisterKernel(name string, impl KernelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = impl
}

// RegisterGlobal declares a named global of the given size. Each loaded
// module gets its own backing allocation for the global on first lookup.
func (d *Driver) RegisterGlobal(name string, bytes uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globals[name] = bytes
}

func (d *Driver) loadModule(op string) (driver.Module, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(op); err != nil {
		return 0, err
	}
	h := driver.Module(d.handle())
	d.modules[h] = &simModule{globals: make(map[string]driver.Ptr)}
	return h, nil
}

// ModuleLoad accepts any path; the simulator resolves functions from its
// kernel registry rather than from the file contents.
func (d *Driver) ModuleLoad(path string) (driver.Module, error) {
	if path == "" {
		return 0, driver.Errorf("cuModuleLoad", driver.ErrorInvalidValue)
	}
	return d.loadModule("cuModuleLoad")
}

func (d *Driver) ModuleLoadData(image []byte) (driver.Module, error) {
	if len(image) == 0 {
		return 0, driver.Errorf("cuModuleLoadData", driver.ErrorInvalidImage)
	}
	return d.loadModule("cuModuleLoadData")
}

func (d *Driver) ModuleUnload(m driver.Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mod, ok := d.modules[m]
	if !ok {
		return driver.Errorf("cuModuleUnload", driver.ErrorInvalidValue)
	}
	for _, p := range mod.globals {
		delete(d.allocs, p)
	}
	delete(d.modules, m)
	return nil
}

func (d *Driver) ModuleGetFunction(m driver.Module, name string) (driver.Function, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.modules[m]; !ok {
		return 0, driver.Errorf("cuModuleGetFunction", driver.ErrorInvalidValue)
	}
	impl, ok := d.kernels[name]
	if !ok {
		return 0, driver.Errorf("cuModuleGetFunction", driver.ErrorNotFound)
	}
	h := driver.Function(d.handle())
	d.functions[h] = &simFunction{name: name, impl: impl}
	return h, nil
}

func (d *Driver) ModuleGetGlobal(m driver.Module, name string) (driver.Ptr, uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mod, ok := d.modules[m]
	if !ok {
		return 0, 0, driver.Errorf("cuModuleGetGlobal", driver.ErrorInvalidValue)
	}
	bytes, ok := d.globals[name]
	if !ok {
		return 0, 0, driver.Errorf("cuModuleGetGlobal", driver.ErrorNotFound)
	}
	if p, ok := mod.globals[name]; ok {
		return p, bytes, nil
	}
	buf := make([]byte, bytes)
	p := driver.Ptr(uintptr(unsafe.Pointer(&buf[0])))
	d.allocs[p] = &allocation{buf: buf, space: spaceDevice}
	mod.globals[name] = p
	return p, bytes, nil
}

func (d *Driver) LaunchKernel(f driver.Function, gridX, gridY, gridZ, blockX, blockY, blockZ uint32, sharedMemBytes uint32, s driver.Stream, params []driver.Ptr) error {
	if gridX == 0 || gridY == 0 || gridZ == 0 || blockX == 0 || blockY == 0 || blockZ == 0 {
		return driver.Errorf("cuLaunchKernel", driver.ErrorInvalidValue)
	}
	d.mu.Lock()
	fn, ok := d.functions[f]
	if !ok {
		d.mu.Unlock()
		return driver.Errorf("cuLaunchKernel", driver.ErrorInvalidValue)
	}
	d.stats.Launches++
	d.mu.Unlock()

	st, err := d.stream("cuLaunchKernel", s)
	if err != nil {
		return err
	}

	// The native launch call consumes the param array before returning, so
	// the caller may release it immediately afterwards. The simulated kernel
	// runs later on the stream worker, so the argument storage is retained
	// as unsafe.Pointer values to keep it reachable until execution.
	held := make([]unsafe.Pointer, len(params))
	for i, p := range params {
		held[i] = unsafe.Pointer(uintptr(p)) //nolint:govet // pinned until the kernel runs
	}
	grid := Dim3{X: gridX, Y: gridY, Z: gridZ}
	block := Dim3{X: blockX, Y: blockY, Z: blockZ}

	st.enqueue(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("kernel %q: panic: %v: %w",
					fn.name, r, driver.Errorf("cuLaunchKernel", driver.ErrorLaunchFailed))
			}
		}()
		args := make([]driver.Ptr, len(held))
		for i, h := range held {
			args[i] = driver.Ptr(uintptr(h))
		}
		return fn.impl(grid, block, sharedMemBytes, args)
	})
	return nil
}
