package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Driver backend selectors.
const (
	DriverSim  = "sim"
	DriverCUDA = "cuda"
)

type Config struct {
	Device struct {
		Index  int    `yaml:"index"`
		Driver string `yaml:"driver"`
	} `yaml:"device"`
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Demo struct {
		VectorLength int `yaml:"vectorLength"`
		MatrixSize   int `yaml:"matrixSize"`
		BlockSize    int `yaml:"blockSize"`
	} `yaml:"demo"`
}

// DefaultConfig returns the configuration used when no file is given: the
// simulated driver on device 0 with modest demo workloads.
func DefaultConfig() *Config {
	var c Config
	c.Device.Driver = DriverSim
	c.Logger.Verbosity = "info"
	c.Demo.VectorLength = 1 << 16
	c.Demo.MatrixSize = 64
	c.Demo.BlockSize = 256
	return &c
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Device.Driver {
	case DriverSim, DriverCUDA:
	default:
		return fmt.Errorf("config: unknown driver %q", c.Device.Driver)
	}
	if c.Device.Index < 0 {
		return fmt.Errorf("config: negative device index %d", c.Device.Index)
	}
	if c.Demo.VectorLength <= 0 || c.Demo.MatrixSize <= 0 || c.Demo.BlockSize <= 0 {
		return fmt.Errorf("config: demo sizes must be positive")
	}
	return nil
}
