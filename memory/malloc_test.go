package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/sim"
)

func newTestContext(t *testing.T) (*driver.Context, *sim.Driver) {
	t.Helper()
	drv := sim.New()
	ctx, err := driver.NewContext(drv, 0)
	require.NoError(t, err)
	return ctx, drv
}

func TestMallocDevice(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		p, err := MallocDevice[uint64](ctx, 16)
		require.NoError(t, err)
		require.False(t, p.IsNull())

		require.NoError(t, FreeDevice(ctx, p))

		stats := drv.Stats()
		assert.Equal(t, int64(1), stats.DeviceAllocs)
		assert.Equal(t, int64(1), stats.Frees)
	})

	t.Run("zero count rejected before the driver", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		_, err := MallocDevice[uint64](ctx, 0)
		assert.ErrorIs(t, err, driver.ErrInvalidMemoryAllocation)
		assert.Equal(t, int64(0), drv.Stats().DeviceAllocs)
	})

	t.Run("negative count rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		_, err := MallocDevice[uint64](ctx, -1)
		assert.ErrorIs(t, err, driver.ErrInvalidMemoryAllocation)
	})

	t.Run("overflowing byte size rejected", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		_, err := MallocDevice[uint64](ctx, math.MaxInt)
		assert.ErrorIs(t, err, driver.ErrInvalidMemoryAllocation)
		assert.Equal(t, int64(0), drv.Stats().DeviceAllocs)
	})

	t.Run("zero-sized type rejected", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		_, err := MallocDevice[struct{}](ctx, 8)
		assert.ErrorIs(t, err, driver.ErrInvalidMemoryAllocation)
		assert.Equal(t, int64(0), drv.Stats().DeviceAllocs)
	})

	t.Run("non-device-copyable type rejected", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		_, err := MallocDevice[string](ctx, 4)
		assert.ErrorIs(t, err, driver.ErrNotDeviceCopy)
	})
}

func TestFreeNull(t *testing.T) {
	ctx, drv := newTestContext(t)

	assert.ErrorIs(t, FreeDevice(ctx, NullDevicePointer[int32]()), driver.ErrNullPointer)
	assert.ErrorIs(t, FreeUnified(ctx, NullUnifiedPointer[int32]()), driver.ErrNullPointer)
	assert.ErrorIs(t, FreeLocked(ctx, 0), driver.ErrNullPointer)
	assert.Equal(t, int64(0), drv.Stats().Frees)
}

func TestMallocSpaces(t *testing.T) {
	ctx, drv := newTestContext(t)

	dp, err := MallocDevice[float32](ctx, 4)
	require.NoError(t, err)
	up, err := MallocUnified[float32](ctx, 4)
	require.NoError(t, err)
	hp, err := MallocLocked[float32](ctx, 4)
	require.NoError(t, err)

	stats := drv.Stats()
	assert.Equal(t, int64(1), stats.DeviceAllocs)
	assert.Equal(t, int64(1), stats.UnifiedAllocs)
	assert.Equal(t, int64(1), stats.HostAllocs)

	require.NoError(t, FreeDevice(ctx, dp))
	require.NoError(t, FreeUnified(ctx, up))
	require.NoError(t, FreeLocked(ctx, hp))
	assert.Equal(t, int64(3), drv.Stats().Frees)
}
