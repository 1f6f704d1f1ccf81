package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/gpumem/fixtures"
)

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		config, err := LoadConfig("../../fixtures/tests/config/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, config)

		assert.Equal(t, 0, config.Device.Index)
		assert.Equal(t, DriverSim, config.Device.Driver)
		assert.Equal(t, "debug", config.Logger.Verbosity)
		assert.Equal(t, 4096, config.Demo.VectorLength)
		assert.Equal(t, 32, config.Demo.MatrixSize)
		assert.Equal(t, 128, config.Demo.BlockSize)
	})

	t.Run("defaults fill unset fields", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logger:\n  verbosity: warn\n"), 0o644))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", config.Logger.Verbosity)
		assert.Equal(t, DriverSim, config.Device.Driver)
		assert.Equal(t, 1<<16, config.Demo.VectorLength)
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := LoadConfig("non-existent-file.yaml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir, err := os.Getwd()
		require.NoError(t, err)

		configPath := filepath.Join(dir, "..", "..", "fixtures", "tests", "invalid_config", "config.yaml")
		_, err = LoadConfig(configPath)
		assert.Error(t, err)
	})

	t.Run("starter template matches defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, fixtures.ConfigTemplate, 0o644))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("unknown driver rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("device:\n  driver: opencl\n"), 0o644))

		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "unknown driver")
	})
}
