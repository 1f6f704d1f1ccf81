//go:build integration
// +build integration

package integration

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/sim"
	"github.com/fxnlabs/gpumem/event"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/logger"
	"github.com/fxnlabs/gpumem/kernel"
	"github.com/fxnlabs/gpumem/memory"
	"github.com/fxnlabs/gpumem/stream"
)

// newSimDriver builds a simulated driver with the saxpy kernel installed:
// y[i] = a*x[i] + y[i].
func newSimDriver() *sim.Driver {
	d := sim.New()
	d.RegisterKernel("saxpy", func(_, _ sim.Dim3, _ uint32, params []driver.Ptr) error {
		a := sim.ParamValue[float32](params, 0)
		x := sim.ParamValue[driver.Ptr](params, 1)
		y := sim.ParamValue[driver.Ptr](params, 2)
		n := int(sim.ParamValue[int32](params, 3))
		xs := unsafe.Slice((*float32)(unsafe.Pointer(uintptr(x))), n)
		ys := unsafe.Slice((*float32)(unsafe.Pointer(uintptr(y))), n)
		for i := range ys {
			ys[i] = a*xs[i] + ys[i]
		}
		return nil
	})
	return d
}

func TestSaxpyPipeline_EndToEnd(t *testing.T) {
	var ctx *driver.Context
	var cfg *config.Config

	app := fxtest.New(t,
		fx.Provide(
			config.DefaultConfig,
			func(cfg *config.Config) (*zap.Logger, error) {
				return logger.New(cfg.Logger.Verbosity)
			},
			newSimDriver,
			func(d *sim.Driver, log *zap.Logger) (*driver.Context, error) {
				return driver.NewContext(d, 0, driver.WithLogger(log))
			},
		),
		fx.Populate(&ctx, &cfg),
	)

	app.RequireStart()
	defer app.RequireStop()

	mod, err := kernel.LoadModuleFromBytes(ctx, []byte("pipeline"))
	require.NoError(t, err)
	defer mod.MustClose()
	saxpy, err := mod.GetFunction("saxpy")
	require.NoError(t, err)

	st, err := stream.New(ctx, driver.StreamNonBlocking)
	require.NoError(t, err)
	defer st.MustClose()

	n := cfg.Demo.VectorLength
	hostX, err := memory.NewLockedBuffer[float32](ctx, n)
	require.NoError(t, err)
	defer hostX.MustClose()
	hostY, err := memory.NewLockedBuffer[float32](ctx, n)
	require.NoError(t, err)
	defer hostY.MustClose()

	for i := range hostX.AsSlice() {
		hostX.AsSlice()[i] = float32(i)
		hostY.AsSlice()[i] = float32(2 * i)
	}

	devX, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
	require.NoError(t, err)
	defer devX.MustClose()
	devY, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
	require.NoError(t, err)
	defer devY.MustClose()

	start, err := event.New(ctx, driver.EventDefault)
	require.NoError(t, err)
	defer start.MustClose()
	stop, err := event.New(ctx, driver.EventDefault)
	require.NoError(t, err)
	defer stop.MustClose()

	require.NoError(t, start.Record(st))
	require.NoError(t, devX.Slice().CopyFromHostAsync(st, hostX))
	require.NoError(t, devY.Slice().CopyFromHostAsync(st, hostY))
	require.NoError(t, kernel.Launch(st, saxpy,
		kernel.Grid1D(uint32((n+255)/256)), kernel.Block1D(256), 0,
		float32(3), devX.AsDevicePointer(), devY.AsDevicePointer(), int32(n)))
	require.NoError(t, devY.Slice().CopyToHostAsync(st, hostY))
	require.NoError(t, stop.Record(st))
	require.NoError(t, st.Synchronize())

	for i, got := range hostY.AsSlice() {
		want := 3*float32(i) + float32(2*i)
		require.Equal(t, want, got, "element %d", i)
	}

	elapsed, err := stop.Elapsed(start)
	require.NoError(t, err)
	assert.Greater(t, elapsed.Nanoseconds(), int64(0))
	t.Logf("saxpy: %d elements in %v", n, elapsed)
}

func BenchmarkSaxpyPipeline(b *testing.B) {
	drv := newSimDriver()
	ctx, err := driver.NewContext(drv, 0)
	if err != nil {
		b.Fatal(err)
	}

	mod, err := kernel.LoadModuleFromBytes(ctx, []byte("pipeline"))
	if err != nil {
		b.Fatal(err)
	}
	defer mod.MustClose()
	saxpy, err := mod.GetFunction("saxpy")
	if err != nil {
		b.Fatal(err)
	}

	for _, n := range []int{1 << 10, 1 << 14, 1 << 18} {
		b.Run(fmt.Sprintf("n_%d", n), func(b *testing.B) {
			st, err := stream.New(ctx, driver.StreamNonBlocking)
			if err != nil {
				b.Fatal(err)
			}
			defer st.MustClose()

			hostX, err := memory.NewLockedBuffer[float32](ctx, n)
			if err != nil {
				b.Fatal(err)
			}
			defer hostX.MustClose()
			hostY, err := memory.NewLockedBuffer[float32](ctx, n)
			if err != nil {
				b.Fatal(err)
			}
			defer hostY.MustClose()

			devX, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
			if err != nil {
				b.Fatal(err)
			}
			defer devX.MustClose()
			devY, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
			if err != nil {
				b.Fatal(err)
			}
			defer devY.MustClose()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := devX.Slice().CopyFromHostAsync(st, hostX); err != nil {
					b.Fatal(err)
				}
				if err := devY.Slice().CopyFromHostAsync(st, hostY); err != nil {
					b.Fatal(err)
				}
				if err := kernel.Launch(st, saxpy,
					kernel.Grid1D(uint32((n+255)/256)), kernel.Block1D(256), 0,
					float32(3), devX.AsDevicePointer(), devY.AsDevicePointer(), int32(n)); err != nil {
					b.Fatal(err)
				}
				if err := devY.Slice().CopyToHostAsync(st, hostY); err != nil {
					b.Fatal(err)
				}
				if err := st.Synchronize(); err != nil {
					b.Fatal(err)
				}
			}
			b.SetBytes(int64(3 * 4 * n))
		})
	}
}
