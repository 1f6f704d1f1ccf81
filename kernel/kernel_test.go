package kernel

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/sim"
	"github.com/fxnlabs/gpumem/memory"
	"github.com/fxnlabs/gpumem/stream"
)

func newTestContext(t *testing.T) (*driver.Context, *sim.Driver) {
	t.Helper()
	drv := sim.New()
	ctx, err := driver.NewContext(drv, 0)
	require.NoError(t, err)
	return ctx, drv
}

// registerScale installs scale(data *float32, n int32, factor float32),
// which multiplies every element in place. Simulated allocations are host
// backed, so the device address dereferences directly.
func registerScale(drv *sim.Driver) {
	drv.RegisterKernel("scale", func(_, _ sim.Dim3, _ uint32, params []driver.Ptr) error {
		data := sim.ParamValue[driver.Ptr](params, 0)
		n := sim.ParamValue[int32](params, 1)
		factor := sim.ParamValue[float32](params, 2)
		s := unsafe.Slice((*float32)(unsafe.Pointer(uintptr(data))), n)
		for i := range s {
			s[i] *= factor
		}
		return nil
	})
}

func TestModule(t *testing.T) {
	t.Run("load and resolve", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		registerScale(drv)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()

		fn, err := mod.GetFunction("scale")
		require.NoError(t, err)
		assert.Equal(t, "scale", fn.Name())

		_, err = mod.GetFunction("missing")
		assert.Error(t, err)
	})

	t.Run("empty image rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		_, err := LoadModuleFromBytes(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("closed module rejects lookups", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		registerScale(drv)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		require.NoError(t, mod.Close())
		require.NoError(t, mod.Close())

		_, err = mod.GetFunction("scale")
		assert.Error(t, err)
	})
}

func TestLaunch(t *testing.T) {
	t.Run("end to end", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		registerScale(drv)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()
		scale, err := mod.GetFunction("scale")
		require.NoError(t, err)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)
		defer st.MustClose()

		buf, err := memory.DeviceBufferFromSlice(ctx, []float32{1, 2, 3, 4})
		require.NoError(t, err)
		defer buf.MustClose()

		err = Launch(st, scale, Grid1D(1), Block1D(4), 0,
			buf.AsDevicePointer(), int32(buf.Len()), float32(2))
		require.NoError(t, err)
		require.NoError(t, st.Synchronize())

		got := make([]float32, 4)
		require.NoError(t, buf.Slice().CopyToHost(got))
		assert.Equal(t, []float32{2, 4, 6, 8}, got)
		assert.Equal(t, int64(1), drv.Stats().Launches)
	})

	t.Run("unset dimensions default to one", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		registerScale(drv)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()
		scale, err := mod.GetFunction("scale")
		require.NoError(t, err)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)
		defer st.MustClose()

		buf, err := memory.DeviceBufferFromSlice(ctx, []float32{3})
		require.NoError(t, err)
		defer buf.MustClose()

		err = Launch(st, scale, GridSize{X: 2}, BlockSize{}, 0,
			buf.AsDevicePointer(), int32(1), float32(10))
		require.NoError(t, err)
		require.NoError(t, st.Synchronize())

		got := make([]float32, 1)
		require.NoError(t, buf.Slice().CopyToHost(got))
		assert.Equal(t, float32(30), got[0])
	})

	t.Run("non-device-copyable argument rejected", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		registerScale(drv)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()
		scale, err := mod.GetFunction("scale")
		require.NoError(t, err)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)
		defer st.MustClose()

		err = Launch(st, scale, Grid1D(1), Block1D(1), 0, "not bits")
		assert.ErrorIs(t, err, driver.ErrNotDeviceCopy)

		err = Launch(st, scale, Grid1D(1), Block1D(1), 0, nil)
		assert.Error(t, err)
	})

	t.Run("zero function rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)
		defer st.MustClose()

		assert.Error(t, Launch(st, Function{}, Grid1D(1), Block1D(1), 0))
	})

	t.Run("kernel panic surfaces on synchronize", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		drv.RegisterKernel("boom", func(_, _ sim.Dim3, _ uint32, _ []driver.Ptr) error {
			panic("out of bounds")
		})

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()
		boom, err := mod.GetFunction("boom")
		require.NoError(t, err)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)

		require.NoError(t, Launch(st, boom, Grid1D(1), Block1D(1), 0))
		assert.Error(t, st.Synchronize())
		assert.Error(t, st.Close())
		require.NoError(t, st.Close())
	})
}

func TestSymbol(t *testing.T) {
	t.Run("host round trip", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		drv.RegisterGlobal("threshold", 8)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()

		sym, err := GetSymbol[uint64](mod, "threshold")
		require.NoError(t, err)

		val := uint64(12345)
		require.NoError(t, sym.CopyFromHost(&val))

		var back uint64
		require.NoError(t, sym.CopyToHost(&back))
		assert.Equal(t, uint64(12345), back)
	})

	t.Run("size mismatch rejected", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		drv.RegisterGlobal("threshold", 8)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()

		_, err = GetSymbol[uint32](mod, "threshold")
		assert.Error(t, err)
	})

	t.Run("unknown symbol rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()

		_, err = GetSymbol[uint64](mod, "missing")
		assert.Error(t, err)
	})

	t.Run("device copies", func(t *testing.T) {
		ctx, drv := newTestContext(t)
		drv.RegisterGlobal("bias", 4)

		mod, err := LoadModuleFromBytes(ctx, []byte("image"))
		require.NoError(t, err)
		defer mod.MustClose()

		sym, err := GetSymbol[float32](mod, "bias")
		require.NoError(t, err)

		box, err := memory.NewDeviceBox(ctx, ptrTo(float32(0.5)))
		require.NoError(t, err)
		defer box.MustClose()

		require.NoError(t, sym.CopyFromDevice(box.AsDevicePointer()))

		var back float32
		require.NoError(t, sym.CopyToHost(&back))
		assert.Equal(t, float32(0.5), back)
	})
}

func ptrTo[T any](v T) *T { return &v }
