// Package event provides markers that capture a position in a stream's work
// queue. A recorded event completes when the stream reaches the captured
// position; other streams can wait on it and the host can query, block on,
// or time against it.
package event

import (
	"fmt"
	"time"

	"github.com/fxnlabs/gpumem/driver"
	"github.com/fxnlabs/gpumem/stream"
)

// Event owns one native event handle. Events are reusable: recording an
// already-recorded event moves it to the new position.
type Event struct {
	ctx *driver.Context
	h   driver.Event
}

// New creates an event. Pass driver.EventDisableTiming for events used only
// for ordering; it makes record and wait cheaper but Elapsed will fail.
func New(ctx *driver.Context, flags driver.EventFlags) (*Event, error) {
	h, err := ctx.Driver().EventCreate(flags)
	if err != nil {
		return nil, err
	}
	return &Event{ctx: ctx, h: h}, nil
}

// Handle exposes the native handle for stream.WaitEvent.
func (e *Event) Handle() driver.Event { return e.h }

func (e *Event) live(op string) error {
	if e.h == 0 {
		return fmt.Errorf("%s: event is destroyed", op)
	}
	return nil
}

// Record captures the current position of s in this event. The event
// completes once all work enqueued on s before the record has finished.
func (e *Event) Record(s *stream.Stream) error {
	if err := e.live("record"); err != nil {
		return err
	}
	return e.ctx.Driver().EventRecord(e.h, s.Handle())
}

// Query reports whether all work captured by the most recent Record has
// completed. An event that was never recorded reports complete.
func (e *Event) Query() (bool, error) {
	if err := e.live("query"); err != nil {
		return false, err
	}
	return e.ctx.Driver().EventQuery(e.h)
}

// Synchronize blocks the calling goroutine until the captured work has
// completed.
func (e *Event) Synchronize() error {
	if err := e.live("synchronize"); err != nil {
		return err
	}
	return e.ctx.Driver().EventSynchronize(e.h)
}

// Elapsed returns the time between start's completion and this event's
// completion. Both events must be recorded and complete, and neither may
// have been created with driver.EventDisableTiming.
func (e *Event) Elapsed(start *Event) (time.Duration, error) {
	if err := e.live("elapsed"); err != nil {
		return 0, err
	}
	if err := start.live("elapsed"); err != nil {
		return 0, err
	}
	ms, err := e.ctx.Driver().EventElapsed(start.h, e.h)
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(ms) * float64(time.Millisecond)), nil
}

// Close destroys the event. On failure the event remains valid; closing an
// already-destroyed event is a no-op.
func (e *Event) Close() error {
	if e.h == 0 {
		return nil
	}
	if err := e.ctx.Driver().EventDestroy(e.h); err != nil {
		return err
	}
	e.h = 0
	return nil
}

// MustClose destroys the event and panics on failure.
func (e *Event) MustClose() {
	if err := e.Close(); err != nil {
		panic(fmt.Sprintf("event: failed to destroy: %v", err))
	}
}
