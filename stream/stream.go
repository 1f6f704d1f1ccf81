// Package stream provides ordered, asynchronous work queues. Every
// operation enqueued on one stream executes in enqueue order without
// overlap; operations on different streams have no ordering relationship
// unless sequenced with events or a blocking synchronize.
package stream

import (
	"fmt"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/internal/metrics"
)

// Stream owns one native work-queue handle. A destroyed stream holds the
// null handle and rejects further use.
type Stream struct {
	ctx *driver.Context
	h   driver.Stream
}

// New creates a stream with the given flags and default priority.
// StreamNonBlocking is recommended: it keeps the stream from serializing
// with the legacy default queue.
func New(ctx *driver.Context, flags driver.StreamFlags) (*Stream, error) {
	return NewWithPriority(ctx, flags, 0)
}

// NewWithPriority creates a stream with an explicit scheduling priority.
// Lower numbers mean greater priority; out-of-range values are clamped by
// the driver to its valid range.
func NewWithPriority(ctx *driver.Context, flags driver.StreamFlags, priority int) (*Stream, error) {
	h, err := ctx.Driver().StreamCreate(flags, priority)
	if err != nil {
		return nil, err
	}
	metrics.StreamsActive.Inc()
	return &Stream{ctx: ctx, h: h}, nil
}

// Handle exposes the native handle for enqueue calls made on this stream's
// behalf by other packages.
func (s *Stream) Handle() driver.Stream { return s.h }

// Context returns the context this stream was created on.
func (s *Stream) Context() *driver.Context { return s.ctx }

func (s *Stream) live(op string) error {
	if s.h == 0 {
		return fmt.Errorf("%s: stream is destroyed", op)
	}
	return nil
}

// Synchronize blocks the calling goroutine until every operation previously
// enqueued on this stream has completed. This is the only blocking call in
// the model; all enqueue operations return as soon as the work is submitted.
func (s *Stream) Synchronize() error {
	if err := s.live("synchronize"); err != nil {
		return err
	}
	return s.ctx.Driver().StreamSynchronize(s.h)
}

// Flags returns the flags the stream was created with.
func (s *Stream) Flags() (driver.StreamFlags, error) {
	if err := s.live("get flags"); err != nil {
		return 0, err
	}
	return s.ctx.Driver().StreamGetFlags(s.h)
}

// Priority returns the stream's scheduling priority. If the stream was
// created with a priority outside the valid range, this returns the clamped
// value.
func (s *Stream) Priority() (int, error) {
	if err := s.live("get priority"); err != nil {
		return 0, err
	}
	return s.ctx.Driver().StreamGetPriority(s.h)
}

// AddCallback enqueues fn to run on a host thread once all work previously
// enqueued on this stream completes. Callbacks added to one stream fire in
// FIFO order; each receives the completion status of the prior work (nil on
// success). The callback must not enqueue further work on any stream.
func (s *Stream) AddCallback(fn driver.CallbackFunc) error {
	if err := s.live("add callback"); err != nil {
		return err
	}
	if err := s.ctx.Driver().StreamAddCallback(s.h, fn); err != nil {
		return err
	}
	metrics.StreamCallbacksTotal.Inc()
	return nil
}

// WaitEvent makes all future work on this stream wait until the recorded
// position captured by e has been reached, without blocking the host.
func (s *Stream) WaitEvent(e driver.Event) error {
	if err := s.live("wait event"); err != nil {
		return err
	}
	return s.ctx.Driver().StreamWaitEvent(s.h, e)
}

// Launch enqueues a kernel launch on this stream. This is the low-level
// primitive: it validates nothing about the arguments beyond handing the
// param addresses to the driver. Use kernel.Launch, which enforces that
// every argument is device-copyable before building the param array.
func (s *Stream) Launch(f driver.Function, grid, block [3]uint32, sharedMemBytes uint32, params []driver.Ptr) error {
	if err := s.live("launch"); err != nil {
		return err
	}
	return s.ctx.Driver().LaunchKernel(f,
		grid[0], grid[1], grid[2],
		block[0], block[1], block[2],
		sharedMemBytes, s.h, params)
}

// Close destroys the stream. Destroying a stream can surface errors from
// previously enqueued asynchronous work; on failure the stream is left
// intact so the caller can inspect it, retry, or deliberately leak it.
// Closing an already-destroyed stream is a no-op.
func (s *Stream) Close() error {
	if s.h == 0 {
		return nil
	}
	if err := s.ctx.Driver().StreamDestroy(s.h); err != nil {
		return err
	}
	s.h = 0
	metrics.StreamsActive.Dec()
	return nil
}

// MustClose destroys the stream and panics on failure. Intended for defer,
// where no error channel exists.
func (s *Stream) MustClose() {
	if err := s.Close(); err != nil {
		panic(fmt.Sprintf("stream: failed to destroy: %v", err))
	}
}
