package sim

import (
	"sync"

	"github.com/fxnlabs/gpumem/driver"
)

// The simulator's priority range. Lower numbers mean greater priority, as in
// the native driver; values outside the range are clamped at creation.
const (
	leastPriority    = 0
	greatestPriority = -2
)

// simStream executes enqueued work strictly in FIFO order on a dedicated
// worker goroutine. A failed task poisons the stream: the error is sticky and
// is reported to later callbacks and to synchronize, matching how the native
// queue surfaces asynchronous failures.
type simStream struct {
	ch       chan func() error
	done     chan struct{}
	flags    driver.StreamFlags
	priority int

	mu     sync.Mutex
	status error
}

func newSimStream(flags driver.StreamFlags, priority int) *simStream {
	s := &simStream{
		ch:       make(chan func() error, 64),
		done:     make(chan struct{}),
		flags:    flags,
		priority: priority,
	}
	go s.run()
	return s
}

func (s *simStream) run() {
	defer close(s.done)
	for task := range s.ch {
		if err := task(); err != nil {
			s.mu.Lock()
			if s.status == nil {
				s.status = err
			}
			s.mu.Unlock()
		}
	}
}

func (s *simStream) enqueue(task func() error) {
	s.ch <- task
}

func (s *simStream) currentStatus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// synchronize waits for every previously enqueued task to finish.
func (s *simStream) synchronize() error {
	fence := make(chan struct{})
	s.ch <- func() error {
		close(fence)
		return nil
	}
	<-fence
	return s.currentStatus()
}

func (s *simStream) destroy() {
	close(s.ch)
	<-s.done
}

func clampPriority(priority int) int {
	if priority < greatestPriority {
		return greatestPriority
	}
	if priority > leastPriority {
		return leastPriority
	}
	return priority
}

func (d *Driver) StreamCreate(flags driver.StreamFlags, priority int) (driver.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit("cuStreamCreateWithPriority"); err != nil {
		return 0, err
	}
	h := driver.Stream(d.handle())
	d.streams[h] = newSimStream(flags, clampPriority(priority))
	return h, nil
}

func (d *Driver) stream(op string, h driver.Stream) (*simStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.streams[h]
	if !ok {
		return nil, driver.Errorf(op, driver.ErrorInvalidValue)
	}
	return s, nil
}

func (d *Driver) StreamDestroy(h driver.Stream) error {
	d.mu.Lock()
	s, ok := d.streams[h]
	if !ok {
		d.mu.Unlock()
		return driver.Errorf("cuStreamDestroy", driver.ErrorInvalidValue)
	}
	d.mu.Unlock()

	// Native destroy waits for pending work and can surface errors from it.
	// On failure the stream stays registered so the caller can retry; the
	// error is consumed by being reported.
	if err := s.synchronize(); err != nil {
		s.mu.Lock()
		s.status = nil
		s.mu.Unlock()
		return err
	}

	d.mu.Lock()
	delete(d.streams, h)
	d.mu.Unlock()
	s.destroy()
	return nil
}

func (d *Driver) StreamSynchronize(h driver.Stream) error {
	s, err := d.stream("cuStreamSynchronize", h)
	if err != nil {
		return err
	}
	return s.synchronize()
}

func (d *Driver) StreamGetFlags(h driver.Stream) (driver.StreamFlags, error) {
	s, err := d.stream("cuStreamGetFlags", h)
	if err != nil {
		return 0, err
	}
	return s.flags, nil
}

func (d *Driver) StreamGetPriority(h driver.Stream) (int, error) {
	s, err := d.stream("cuStreamGetPriority", h)
	if err != nil {
		return 0, err
	}
	return s.priority, nil
}

func (d *Driver) StreamAddCallback(h driver.Stream, fn driver.CallbackFunc) error {
	if fn == nil {
		return driver.Errorf("cuStreamAddCallback", driver.ErrorInvalidValue)
	}
	s, err := d.stream("cuStreamAddCallback", h)
	if err != nil {
		return err
	}
	s.enqueue(func() error {
		fn(s.currentStatus())
		return nil
	})
	return nil
}

func (d *Driver) StreamWaitEvent(h driver.Stream, e driver.Event) error {
	s, err := d.stream("cuStreamWaitEvent", h)
	if err != nil {
		return err
	}
	ev, err := d.event("cuStreamWaitEvent", e)
	if err != nil {
		return err
	}
	marker := ev.marker()
	s.enqueue(func() error {
		if marker != nil {
			<-marker
		}
		return nil
	})
	return nil
}
