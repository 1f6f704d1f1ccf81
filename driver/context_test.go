package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/sim"
)

func TestNewContext(t *testing.T) {
	t.Run("binds the device", func(t *testing.T) {
		ctx, err := driver.NewContext(sim.New(), 0, driver.WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, 0, ctx.Device())
		assert.NotEmpty(t, ctx.ID())
		assert.NotNil(t, ctx.Log())
		assert.NotNil(t, ctx.Driver())
	})

	t.Run("unknown device rejected", func(t *testing.T) {
		_, err := driver.NewContext(sim.New(), 3)
		assert.Error(t, err)
	})

	t.Run("nil driver rejected", func(t *testing.T) {
		_, err := driver.NewContext(nil, 0)
		assert.Error(t, err)
	})

	t.Run("ids are unique", func(t *testing.T) {
		a, err := driver.NewContext(sim.New(), 0)
		require.NoError(t, err)
		b, err := driver.NewContext(sim.New(), 0)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}
