package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/pingpoll/internal/history"
	"github.com/mattn/go-runewidth"
)

// State is the outcome of a cycle
type State int

const (
	StateNone      State = iota // no cycle has finished yet
	StateCompleted              // HTTP 200 before the abort timer
	StateAborted                // timed out, non-200, or transport failure
)

// String returns the recorded name of the State
func (s State) String() string {
	switch s {
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	default:
		return "NONE"
	}
}

// Status describes the most recent cycle. Zero times and a nil body mean
// the value is unknown.
type Status struct {
	CycleID      string
	RequestTime  time.Time
	ResponseTime time.Time
	Body         []byte
	StatusCode   int
	State        State
}

// timestampLayout is yyyy-mm-dd hh:mm:ss, milliseconds appended after a colon
const timestampLayout = "2006-01-02 15:04:05"

const recordTimeout = 2 * time.Second

// FormatTimestamp renders t as "yyyy-mm-dd hh:mm:ss:mmm", or "null" for the
// zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "null"
	}
	return fmt.Sprintf("%s:%03d", t.Format(timestampLayout), t.Nanosecond()/int(time.Millisecond))
}

// Line formats the status for a notifier. A positive width truncates the
// body to that many display columns.
func (s Status) Line(width int) string {
	output := "null"
	if s.Body != nil {
		output = string(s.Body)
		if width > 0 {
			output = runewidth.Truncate(output, width, "...")
		}
	}
	return fmt.Sprintf("Request: %s Response: %s Output: %s",
		FormatTimestamp(s.RequestTime), FormatTimestamp(s.ResponseTime), output)
}

// record overwrites the last status and fans it out to the sinks.
// Must be called with p.mu held.
func (p *Poller) record(st Status, errMsg string) {
	p.status = st

	cfg := p.cfg
	if cfg.DebugMode || cfg.LogToConsole {
		line := st.Line(p.outputWidth)
		if cfg.DebugMode {
			p.notify(p.visual, "visual", line)
		} else {
			p.notify(p.console, "console", line)
		}
	}

	if p.recorder == nil {
		return
	}
	entry := history.Entry{
		ID:           st.CycleID,
		URL:          cfg.URL,
		Profile:      cfg.Profile,
		State:        st.State.String(),
		StatusCode:   st.StatusCode,
		RequestTime:  st.RequestTime,
		ResponseTime: st.ResponseTime,
		Body:         string(st.Body),
		Error:        errMsg,
		RecordedAt:   p.clock.Now(),
	}
	p.bestEffort("record history", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		return p.recorder.Record(ctx, entry)
	})
}

// LastRequestStatus returns a copy of the most recent cycle's status
func (p *Poller) LastRequestStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status
	if st.Body != nil {
		st.Body = append([]byte(nil), st.Body...)
	}
	return st
}

// CompletedRequestCount returns the completed count of the current (or last)
// profile
func (p *Poller) CompletedRequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg == nil {
		return 0
	}
	return p.cfg.CompletedCount
}

// AbortedRequestCount returns the aborted count of the current (or last)
// profile
func (p *Poller) AbortedRequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg == nil {
		return 0
	}
	return p.cfg.AbortedCount
}

// MaxRequestCount returns the configured request ceiling
func (p *Poller) MaxRequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg == nil {
		return 0
	}
	return p.cfg.MaxRequests
}

// Snapshot is a consistent read of the poller for display
type Snapshot struct {
	URL                string
	Profile            string
	Interval           time.Duration
	Running            bool
	CompletedCount     int
	AbortedCount       int
	MaxRequests        int
	MaxAbortedRequests int
	Issued             int
	Last               Status
}

// Snapshot returns every counter and the last status under one lock
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Running: p.running,
		Issued:  p.issued,
		Last:    p.status,
	}
	if p.cfg != nil {
		s.URL = p.cfg.URL
		s.Profile = p.cfg.Profile
		s.Interval = p.cfg.Interval()
		s.CompletedCount = p.cfg.CompletedCount
		s.AbortedCount = p.cfg.AbortedCount
		s.MaxRequests = p.cfg.MaxRequests
		s.MaxAbortedRequests = p.cfg.MaxAbortedRequests
	}
	if s.Last.Body != nil {
		s.Last.Body = append([]byte(nil), s.Last.Body...)
	}
	return s
}
