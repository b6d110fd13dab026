package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/pingpoll/internal/history"
	"github.com/jfmyers9/pingpoll/pkg/transport"
	"github.com/rs/zerolog"
)

// fakeClock fires timers only from Advance, on the calling goroutine
type fakeClock struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	when    time.Time
	period  time.Duration
	fn      func()
	stopped bool
	seq     int
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Every(d time.Duration, f func()) (Timer, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive tick period %s", d)
	}
	return c.add(d, d, f), nil
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.add(d, 0, f)
}

func (c *fakeClock) add(d, period time.Duration, f func()) *fakeTimer {
	c.seq++
	t := &fakeTimer{when: c.now.Add(d), period: period, fn: f, seq: c.seq}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, firing due timers in deadline order,
// including timers armed by earlier callbacks.
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.when.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].when.Equal(due[j].when) {
				return due[i].seq < due[j].seq
			}
			return due[i].when.Before(due[j].when)
		})

		next := due[0]
		if next.when.After(c.now) {
			c.now = next.when
		}
		if next.period > 0 {
			next.when = next.when.Add(next.period)
		} else {
			next.stopped = true
		}
		next.fn()
	}
	c.now = target
}

// active counts live timers; repeating reports the kind
func (c *fakeClock) active(repeating bool) int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && (t.period > 0) == repeating {
			n++
		}
	}
	return n
}

// armed counts every timer ever created of the given kind
func (c *fakeClock) armed(repeating bool) int {
	n := 0
	for _, t := range c.timers {
		if (t.period > 0) == repeating {
			n++
		}
	}
	return n
}

// fakeTransport records requests; tests complete them explicitly
type fakeTransport struct {
	mu          sync.Mutex
	created     []*fakeRequest
	unavailable bool
}

type fakeRequest struct {
	mu      sync.Mutex
	url     string
	onDone  func(transport.Response)
	sent    bool
	aborted bool
}

func (f *fakeTransport) NewRequest() (transport.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, transport.ErrUnavailable
	}
	r := &fakeRequest{}
	f.created = append(f.created, r)
	return r, nil
}

func (r *fakeRequest) Send(url string, onDone func(transport.Response)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url = url
	r.onDone = onDone
	r.sent = true
}

func (r *fakeRequest) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
}

func (r *fakeRequest) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// complete delivers a response, as the transport goroutine would
func (r *fakeRequest) complete(t *testing.T, status int, body string) {
	t.Helper()
	r.mu.Lock()
	onDone := r.onDone
	r.mu.Unlock()
	if onDone == nil {
		t.Fatal("complete called on a request that was never sent")
	}
	var b []byte
	if body != "" {
		b = []byte(body)
	}
	onDone(transport.Response{StatusCode: status, Body: b})
}

func (r *fakeRequest) fail(t *testing.T, err error) {
	t.Helper()
	r.mu.Lock()
	onDone := r.onDone
	r.mu.Unlock()
	onDone(transport.Response{Err: err})
}

// sent returns requests that were dispatched, in order
func (f *fakeTransport) sent() []*fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeRequest
	for _, r := range f.created {
		r.mu.Lock()
		if r.sent {
			out = append(out, r)
		}
		r.mu.Unlock()
	}
	return out
}

func (f *fakeTransport) last(t *testing.T) *fakeRequest {
	t.Helper()
	sent := f.sent()
	if len(sent) == 0 {
		t.Fatal("no request has been sent")
	}
	return sent[len(sent)-1]
}

// brokenClock hands out timers whose Stop panics
type brokenClock struct{ *fakeClock }

type brokenTimer struct{ *fakeTimer }

func (brokenTimer) Stop() bool { panic("timer stop failed") }

func (c brokenClock) Every(d time.Duration, f func()) (Timer, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive tick period %s", d)
	}
	return brokenTimer{c.add(d, d, f)}, nil
}

func (c brokenClock) AfterFunc(d time.Duration, f func()) Timer {
	return brokenTimer{c.add(d, 0, f)}
}

// brokenTransport hands out requests whose Abort panics
type brokenTransport struct{ *fakeTransport }

type brokenRequest struct{ *fakeRequest }

func (brokenRequest) Abort() { panic("abort failed") }

func (f brokenTransport) NewRequest() (transport.Request, error) {
	req, err := f.fakeTransport.NewRequest()
	if err != nil {
		return nil, err
	}
	return brokenRequest{req.(*fakeRequest)}, nil
}

// lineSink collects notifier lines
type lineSink struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (s *lineSink) Notify(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return s.err
}

func (s *lineSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// memRecorder collects journal entries
type memRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (m *memRecorder) Record(ctx context.Context, e history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	poller    *Poller
	clock     *fakeClock
	transport *fakeTransport
	console   *lineSink
	visual    *lineSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		transport: &fakeTransport{},
		console:   &lineSink{},
		visual:    &lineSink{},
	}
	h.poller = New(Options{
		Transport: h.transport,
		Clock:     h.clock,
		Console:   h.console,
		Visual:    h.visual,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(h.poller.Stop)
	return h
}

func (h *harness) start(t *testing.T, interval, maxRequests int) {
	t.Helper()
	ok := h.poller.Start(UserConfig{
		URL:             "http://example.test/ping",
		IntervalSeconds: interval,
		MaxRequests:     maxRequests,
	})
	if !ok {
		t.Fatal("Start returned false")
	}
}

func boolPtr(b bool) *bool { return &b }

var errBoom = errors.New("boom")
