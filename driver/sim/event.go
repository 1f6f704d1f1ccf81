package sim

import (
	"sync"
	"time"

	"github.com/fxnlabs/gpumem/driver"
)

// simEvent captures a position in a stream. Recording enqueues a completion
// marker; the marker closes when the stream reaches it.
type simEvent struct {
	flags driver.EventFlags

	mu       sync.Mutex
	pending  chan struct{} // nil when no record is outstanding
	recorded bool
	when     time.Time
}

// marker returns the channel that closes when the last recorded position is
// reached, or nil if the event was never recorded (an unrecorded event
// counts as complete).
func (e *simEvent) marker() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *simEvent) complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return true
	}
	select {
	case <-e.pending:
		return true
	default:
		return false
	}
}

func (d *Driver) EventCreate(flags driver.EventFlags) (driver.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit("cuEventCreate"); err != nil {
		return 0, err
	}
	h := driver.Event(d.handle())
	d.events[h] = &simEvent{flags: flags}
	return h, nil
}

func (d *Driver) event(op string, h driver.Event) (*simEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.events[h]
	if !ok {
		return nil, driver.Errorf(op, driver.ErrorInvalidValue)
	}
	return e, nil
}

func (d *Driver) EventDestroy(h driver.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.events[h]; !ok {
		return driver.Errorf("cuEventDestroy", driver.ErrorInvalidValue)
	}
	delete(d.events, h)
	return nil
}

func (d *Driver) EventRecord(h driver.Event, s driver.Stream) error {
	e, err := d.event("cuEventRecord", h)
	if err != nil {
		return err
	}
	st, err := d.stream("cuEventRecord", s)
	if err != nil {
		return err
	}

	marker := make(chan struct{})
	e.mu.Lock()
	e.pending = marker
	e.recorded = true
	e.mu.Unlock()

	st.enqueue(func() error {
		e.mu.Lock()
		e.when = time.Now()
		e.mu.Unlock()
		close(marker)
		return nil
	})
	return nil
}

func (d *Driver) EventQuery(h driver.Event) (bool, error) {
	e, err := d.event("cuEventQuery", h)
	if err != nil {
		return false, err
	}
	return e.complete(), nil
}

func (d *Driver) EventSynchronize(h driver.Event) error {
	e, err := d.event("cuEventSynchronize", h)
	if err != nil {
		return err
	}
	if marker := e.marker(); marker != nil {
		<-marker
	}
	return nil
}

func (d *Driver) EventElapsed(start, end driver.Event) (float32, error) {
	es, err := d.event("cuEventElapsedTime", start)
	if err != nil {
		return 0, err
	}
	ee, err := d.event("cuEventElapsedTime", end)
	if err != nil {
		return 0, err
	}
	if es.flags&driver.EventDisableTiming != 0 || ee.flags&driver.EventDisableTiming != 0 {
		return 0, driver.Errorf("cuEventElapsedTime", driver.ErrorInvalidValue)
	}
	if !es.complete() || !ee.complete() {
		return 0, driver.Errorf("cuEventElapsedTime", driver.ErrorNotReady)
	}
	es.mu.Lock()
	startAt, startRecorded := es.when, es.recorded
	es.mu.Unlock()
	ee.mu.Lock()
	endAt, endRecorded := ee.when, ee.recorded
	ee.mu.Unlock()
	if !startRecorded || !endRecorded {
		return 0, driver.Errorf("cuEventElapsedTime", driver.ErrorInvalidValue)
	}
	return float32(endAt.Sub(startAt)) / float32(time.Millisecond), nil
}
