package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedBox(t *testing.T) {
	t.Run("host access", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := uint64(42)
		box, err := NewUnifiedBox(ctx, &val)
		require.NoError(t, err)
		defer box.MustClose()

		assert.Equal(t, uint64(42), box.Value())
		box.Set(43)
		assert.Equal(t, uint64(43), *box.Ref())
	})

	t.Run("zeroed", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		box, err := ZeroedUnifiedBox[[8]uint32](ctx)
		require.NoError(t, err)
		defer box.MustClose()

		assert.Equal(t, [8]uint32{}, box.Value())
	})

	t.Run("device view shares the address", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := int32(11)
		box, err := NewUnifiedBox(ctx, &val)
		require.NoError(t, err)
		defer box.MustClose()

		assert.Equal(t, box.AsUnifiedPointer().Raw(), box.AsDevicePointer().Raw())
	})

	t.Run("ownership transfer", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := float64(2.5)
		box, err := NewUnifiedBox(ctx, &val)
		require.NoError(t, err)

		p := box.IntoUnified()
		require.NoError(t, box.Close())
		assert.Equal(t, int64(0), drv.Stats().Frees)

		assert.Equal(t, 2.5, *p.Ref())

		adopted := UnifiedBoxFromUnified(ctx, p)
		require.NoError(t, adopted.Close())
		assert.Equal(t, int64(1), drv.Stats().Frees)
	})
}

func TestUnifiedBuffer(t *testing.T) {
	t.Run("from slice round trip", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		buf, err := UnifiedBufferFromSlice(ctx, []int32{5, 6, 7})
		require.NoError(t, err)
		defer buf.MustClose()

		assert.Equal(t, []int32{5, 6, 7}, buf.AsSlice())
	})

	t.Run("device slice view copies to host", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		buf, err := UnifiedBufferFromSlice(ctx, []uint16{1, 2, 3, 4})
		require.NoError(t, err)
		defer buf.MustClose()

		view := buf.AsDeviceSlice()
		require.Equal(t, 4, view.Len())

		dst := make([]uint16, 4)
		require.NoError(t, view.CopyToHost(dst))
		assert.Equal(t, []uint16{1, 2, 3, 4}, dst)
	})

	t.Run("zeroed", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		buf, err := ZeroedUnifiedBuffer[uint64](ctx, 6)
		require.NoError(t, err)
		defer buf.MustClose()

		assert.Equal(t, make([]uint64, 6), buf.AsSlice())
	})

	t.Run("zero length makes no allocation", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		buf, err := UninitializedUnifiedBuffer[uint64](ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, buf.AsSlice())
		require.NoError(t, buf.Close())
		assert.Equal(t, int64(0), drv.Stats().UnifiedAllocs)
	})
}
