package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/driver/cuda"
	"github.com/fxnlabs/gpumem/driver/sim"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/logger"
)

func main() {
	var configPath string
	var jsonLogs bool
	var cfg *config.Config
	var rootLogger *zap.Logger

	app := &cli.App{
		Name:  "gpumem",
		Usage: "Owned GPU memory, streams and kernel launches",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to a YAML config file",
				EnvVars:     []string{"GPUMEM_CONFIG"},
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Emit structured JSON logs instead of console output",
				Destination: &jsonLogs,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if configPath != "" {
				cfg, err = config.LoadConfig(configPath)
				if err != nil {
					return err
				}
			} else {
				cfg = config.DefaultConfig()
			}
			build := logger.NewConsole
			if jsonLogs {
				build = logger.New
			}
			zapLogger, err := build(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			rootLogger = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			infoCommand(&cfg, &rootLogger),
			demoCommand(&cfg, &rootLogger),
			matmulCommand(&cfg, &rootLogger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if rootLogger != nil {
			rootLogger.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// openContext builds the configured driver and binds it to the configured
// device. The simulated driver gets the demo kernels registered so the demo
// and matmul commands can resolve them.
func openContext(cfg *config.Config, log *zap.Logger) (*driver.Context, error) {
	var drv driver.Driver
	switch cfg.Device.Driver {
	case config.DriverSim:
		s := sim.New()
		registerDemoKernels(s)
		drv = s
	case config.DriverCUDA:
		drv = cuda.New()
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Device.Driver)
	}
	return driver.NewContext(drv, cfg.Device.Index, driver.WithLogger(log))
}
