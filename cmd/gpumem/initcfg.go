package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fxnlabs/gpumem/fixtures"
)

// initCommand writes a starter config file the other commands can load with
// --config. It refuses to clobber an existing file.
func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a starter config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Path to write the config file to",
				Value: "config.yaml",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("out")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing file %s", path)
			}
			if err := os.WriteFile(path, fixtures.ConfigTemplate, 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}
