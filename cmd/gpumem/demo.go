package main

import (
	"fmt"
	"math/rand"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/event"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/kernel"
	"github.com/fxnlabs/gpumem/memory"
	"github.com/fxnlabs/gpumem/stream"
)

func demoCommand(cfg **config.Config, log **zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Run a vector addition through the full stack",
		Action: func(c *cli.Context) error {
			return runDemo(*cfg, *log)
		},
	}
}

// runDemo stages two input vectors through page-locked memory, copies them
// to the device asynchronously, launches vecadd, copies the result back on
// the same stream, and times the whole pipeline with events.
func runDemo(cfg *config.Config, log *zap.Logger) error {
	ctx, err := openContext(cfg, log)
	if err != nil {
		return err
	}
	n := cfg.Demo.VectorLength

	mod, err := kernel.LoadModuleFromBytes(ctx, []byte("demo"))
	if err != nil {
		return err
	}
	defer mod.MustClose()
	vecadd, err := mod.GetFunction("vecadd")
	if err != nil {
		return err
	}

	st, err := stream.New(ctx, driver.StreamNonBlocking)
	if err != nil {
		return err
	}
	defer st.MustClose()

	hostA, err := memory.NewLockedBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer hostA.MustClose()
	hostB, err := memory.NewLockedBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer hostB.MustClose()
	hostOut, err := memory.NewLockedBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer hostOut.MustClose()

	a, b := hostA.AsSlice(), hostB.AsSlice()
	for i := range a {
		a[i] = rand.Float32()
		b[i] = rand.Float32()
	}

	devA, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer devA.MustClose()
	devB, err := memory.UninitializedDeviceBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer devB.MustClose()
	devOut, err := memory.ZeroedDeviceBuffer[float32](ctx, n)
	if err != nil {
		return err
	}
	defer devOut.MustClose()

	start, err := event.New(ctx, driver.EventDefault)
	if err != nil {
		return err
	}
	defer start.MustClose()
	stop, err := event.New(ctx, driver.EventDefault)
	if err != nil {
		return err
	}
	defer stop.MustClose()

	if err := start.Record(st); err != nil {
		return err
	}
	if err := devA.Slice().CopyFromHostAsync(st, hostA); err != nil {
		return err
	}
	if err := devB.Slice().CopyFromHostAsync(st, hostB); err != nil {
		return err
	}
	grid := kernel.Grid1D(uint32((n + cfg.Demo.BlockSize - 1) / cfg.Demo.BlockSize))
	block := kernel.Block1D(uint32(cfg.Demo.BlockSize))
	err = kernel.Launch(st, vecadd, grid, block, 0,
		devA.AsDevicePointer(), devB.AsDevicePointer(), devOut.AsDevicePointer(), int32(n))
	if err != nil {
		return err
	}
	if err := devOut.Slice().CopyToHostAsync(st, hostOut); err != nil {
		return err
	}
	if err := stop.Record(st); err != nil {
		return err
	}
	if err := st.AddCallback(func(status error) {
		if status != nil {
			log.Error("pipeline failed", zap.Error(status))
		}
	}); err != nil {
		return err
	}

	if err := st.Synchronize(); err != nil {
		return err
	}

	out := hostOut.AsSlice()
	for i := range out {
		want := a[i] + b[i]
		if out[i] != want {
			return fmt.Errorf("element %d: got %v, want %v", i, out[i], want)
		}
	}

	elapsed, err := stop.Elapsed(start)
	if err != nil {
		return err
	}
	log.Info("vector addition verified",
		zap.Int("elements", n),
		zap.Duration("elapsed", elapsed))
	fmt.Printf("vecadd: %d elements verified in %s\n", n, elapsed)
	return nil
}
