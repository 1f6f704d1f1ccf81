package main

import (
	"unsafe"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/sim"
)

// registerDemoKernels installs host-side implementations of the kernels the
// demo and matmul commands launch. Simulated allocations are host-backed, so
// the raw device addresses dereference directly.
func registerDemoKernels(d *sim.Driver) {
	// vecadd(a, b, out *float32, n int32): out[i] = a[i] + b[i]. Covers all
	// n elements with a grid-stride loop so any launch geometry is valid.
	d.RegisterKernel("vecadd", func(gridDim, blockDim sim.Dim3, _ uint32, params []driver.Ptr) error {
		a := floatsAt(sim.ParamValue[driver.Ptr](params, 0), int(sim.ParamValue[int32](params, 3)))
		b := floatsAt(sim.ParamValue[driver.Ptr](params, 1), len(a))
		out := floatsAt(sim.ParamValue[driver.Ptr](params, 2), len(a))
		stride := int(gridDim.X) * int(blockDim.X)
		for tid := 0; tid < stride; tid++ {
			for i := tid; i < len(out); i += stride {
				out[i] = a[i] + b[i]
			}
		}
		return nil
	})

	// matmul(a, b, c *float32, n int32): C = A * B for row-major n-by-n
	// matrices.
	d.RegisterKernel("matmul", func(_, _ sim.Dim3, _ uint32, params []driver.Ptr) error {
		n := int(sim.ParamValue[int32](params, 3))
		a := floatsAt(sim.ParamValue[driver.Ptr](params, 0), n*n)
		b := floatsAt(sim.ParamValue[driver.Ptr](params, 1), n*n)
		c := floatsAt(sim.ParamValue[driver.Ptr](params, 2), n*n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				var sum float32
				for k := 0; k < n; k++ {
					sum += a[i*n+k] * b[k*n+j]
				}
				c[i*n+j] = sum
			}
		}
		return nil
	})
}

func floatsAt(p driver.Ptr, n int) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(uintptr(p))), n)
}
