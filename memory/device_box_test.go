package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/stream"
)

func TestDeviceBox(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := uint64(5)
		box, err := NewDeviceBox(ctx, &val)
		require.NoError(t, err)
		defer box.MustClose()

		var back uint64
		require.NoError(t, box.CopyToHost(&back))
		assert.Equal(t, uint64(5), back)
	})

	t.Run("device to device", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := int32(-7)
		src, err := NewDeviceBox(ctx, &val)
		require.NoError(t, err)
		defer src.MustClose()

		dst, err := UninitializedDeviceBox[int32](ctx)
		require.NoError(t, err)
		defer dst.MustClose()

		require.NoError(t, src.CopyToDevice(dst))

		var back int32
		require.NoError(t, dst.CopyToHost(&back))
		assert.Equal(t, int32(-7), back)
	})

	t.Run("zero-sized type never reaches the driver", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := struct{}{}
		box, err := NewDeviceBox(ctx, &val)
		require.NoError(t, err)
		assert.True(t, box.AsDevicePointer().IsNull())

		require.NoError(t, box.CopyToHost(&val))
		require.NoError(t, box.Close())

		stats := drv.Stats()
		assert.Equal(t, int64(0), stats.DeviceAllocs)
		assert.Equal(t, int64(0), stats.Copies)
		assert.Equal(t, int64(0), stats.Frees)
	})

	t.Run("non-device-copyable type rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := "not bits"
		_, err := NewDeviceBox(ctx, &val)
		assert.ErrorIs(t, err, driver.ErrNotDeviceCopy)
	})

	t.Run("into device transfers ownership", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := uint32(9)
		box, err := NewDeviceBox(ctx, &val)
		require.NoError(t, err)

		p := box.IntoDevice()
		require.False(t, p.IsNull())
		assert.True(t, box.AsDevicePointer().IsNull())

		// The emptied box no longer frees anything.
		require.NoError(t, box.Close())
		assert.Equal(t, int64(0), drv.Stats().Frees)

		adopted := DeviceBoxFromDevice(ctx, p)
		require.NoError(t, adopted.Close())
		assert.Equal(t, int64(1), drv.Stats().Frees)
	})

	t.Run("double close is a no-op", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := byte(1)
		box, err := NewDeviceBox(ctx, &val)
		require.NoError(t, err)

		require.NoError(t, box.Close())
		require.NoError(t, box.Close())
		assert.Equal(t, int64(1), drv.Stats().Frees)
	})

	t.Run("async copies through a locked box", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		st, err := stream.New(ctx, driver.StreamNonBlocking)
		require.NoError(t, err)
		defer st.MustClose()

		val := float64(3.25)
		staging, err := NewLockedBox(ctx, &val)
		require.NoError(t, err)
		defer staging.MustClose()

		box, err := UninitializedDeviceBox[float64](ctx)
		require.NoError(t, err)
		defer box.MustClose()

		require.NoError(t, box.CopyFromHostAsync(st, staging))

		result, err := UninitializedLockedBox[float64](ctx)
		require.NoError(t, err)
		defer result.MustClose()

		require.NoError(t, box.CopyToHostAsync(st, result))
		require.NoError(t, st.Synchronize())
		assert.Equal(t, 3.25, result.Value())
	})
}
