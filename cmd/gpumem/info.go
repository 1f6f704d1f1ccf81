package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/internal/config"
)

func infoCommand(cfg **config.Config, log **zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the configured driver and device",
		Action: func(c *cli.Context) error {
			banner := figure.NewFigure("gpumem", "", true)
			banner.Print()
			fmt.Println("")

			ctx, err := openContext(*cfg, *log)
			if err != nil {
				return err
			}

			count, err := ctx.Driver().DeviceCount()
			if err != nil {
				return err
			}
			name, err := ctx.Driver().DeviceName()
			if err != nil {
				return err
			}

			fmt.Printf("Driver:  %s\n", (*cfg).Device.Driver)
			fmt.Printf("Devices: %d\n", count)
			fmt.Printf("Bound:   %d (%s)\n", ctx.Device(), name)
			fmt.Printf("Context: %s\n", ctx.ID())
			return nil
		},
	}
}
