package poller

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts the two timers the scheduler needs
type Clock interface {
	Now() time.Time

	// Every calls f every d until the returned Timer is stopped.
	// The first call happens after d. Fails for d <= 0.
	Every(d time.Duration, f func()) (Timer, error)

	// AfterFunc calls f once after d. d <= 0 fires as soon as possible.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a scheduled callback
type Timer interface {
	// Stop prevents future calls. It reports whether the timer was active.
	Stop() bool
}

// realClock implements Clock using the time package
type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Every(d time.Duration, f func()) (Timer, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive tick period %s", d)
	}
	t := &realTicker{t: time.NewTicker(d), done: make(chan struct{})}
	go t.run(f)
	return t, nil
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (r *realTicker) run(f func()) {
	for {
		select {
		case <-r.done:
			return
		case <-r.t.C:
			f()
		}
	}
}

func (r *realTicker) Stop() bool {
	stopped := false
	r.once.Do(func() {
		r.t.Stop()
		close(r.done)
		stopped = true
	})
	return stopped
}
