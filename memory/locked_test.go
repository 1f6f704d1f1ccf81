package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedBox(t *testing.T) {
	t.Run("host access", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		val := int64(-42)
		box, err := NewLockedBox(ctx, &val)
		require.NoError(t, err)
		defer box.MustClose()

		assert.Equal(t, int64(-42), box.Value())
		box.Set(100)
		assert.Equal(t, int64(100), *box.Ref())
	})

	t.Run("zero-sized type never reaches the driver", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := struct{}{}
		box, err := NewLockedBox(ctx, &val)
		require.NoError(t, err)
		require.NoError(t, box.Close())
		assert.Equal(t, int64(0), drv.Stats().HostAllocs)
	})

	t.Run("raw round trip", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		val := uint16(7)
		box, err := NewLockedBox(ctx, &val)
		require.NoError(t, err)

		raw := box.IntoRaw()
		require.NoError(t, box.Close())
		assert.Equal(t, int64(0), drv.Stats().Frees)

		adopted := LockedBoxFromRaw[uint16](ctx, raw)
		assert.Equal(t, uint16(7), adopted.Value())
		require.NoError(t, adopted.Close())
		assert.Equal(t, int64(1), drv.Stats().Frees)
	})
}

func TestLockedBuffer(t *testing.T) {
	t.Run("slice view is writable", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		buf, err := NewLockedBuffer[float32](ctx, 4)
		require.NoError(t, err)
		defer buf.MustClose()

		s := buf.AsSlice()
		require.Len(t, s, 4)
		assert.Equal(t, []float32{0, 0, 0, 0}, s)

		s[2] = 1.5
		assert.Equal(t, float32(1.5), buf.AsSlice()[2])
	})

	t.Run("from slice", func(t *testing.T) {
		ctx, _ := newTestContext(t)

		buf, err := LockedBufferFromSlice(ctx, []int32{3, 1, 4})
		require.NoError(t, err)
		defer buf.MustClose()

		assert.Equal(t, []int32{3, 1, 4}, buf.AsSlice())
	})

	t.Run("zero length", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		buf, err := NewLockedBuffer[int32](ctx, 0)
		require.NoError(t, err)
		assert.True(t, buf.IsEmpty())
		assert.Nil(t, buf.AsSlice())
		require.NoError(t, buf.Close())
		assert.Equal(t, int64(0), drv.Stats().HostAllocs)
	})

	t.Run("double close is a no-op", func(t *testing.T) {
		ctx, drv := newTestContext(t)

		buf, err := NewLockedBuffer[int32](ctx, 2)
		require.NoError(t, err)
		require.NoError(t, buf.Close())
		require.NoError(t, buf.Close())
		assert.Equal(t, int64(1), drv.Stats().Frees)
	})
}
