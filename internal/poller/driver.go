package poller

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jfmyers9/pingpoll/pkg/transport"
)

// cycle is one tick's request. Its fields are guarded by Poller.mu.
type cycle struct {
	id          string
	req         transport.Request
	abortTimer  Timer
	abortSource AbortSource
	terminal    bool
	status      Status
}

func (p *Poller) newCycle() *cycle {
	return &cycle{id: uuid.NewString()}
}

func (p *Poller) newRequest() (transport.Request, error) {
	if p.transport == nil {
		return nil, transport.ErrUnavailable
	}
	req, err := p.transport.NewRequest()
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, transport.ErrUnavailable
	}
	return req, nil
}

// issue dispatches the cycle's GET without waiting for it. Returns false if
// no request could be created, in which case polling has been stopped.
// Must be called with p.mu held.
func (p *Poller) issue(gen uint64, c *cycle) bool {
	req := p.next
	p.next = nil
	if req == nil {
		var err error
		req, err = p.newRequest()
		if err != nil {
			p.logger.Error().Err(err).Str("cycle", c.id).Msg("Transport unavailable")
			if p.cfg.LogToConsole {
				p.notify(p.console, "console", "Transport unavailable: "+err.Error())
			}
			p.stopLocked("transport unavailable")
			return false
		}
	}

	c.req = req
	c.status = Status{CycleID: c.id, RequestTime: p.clock.Now()}
	p.issued++

	p.logger.Debug().Str("cycle", c.id).Str("url", p.cfg.URL).Msg("Sending request")

	url := p.cfg.URL
	p.bestEffort("send request", func() error {
		req.Send(url, func(resp transport.Response) { p.onComplete(gen, c, resp) })
		return nil
	})
	return true
}

// onComplete classifies the terminal transport state of a cycle
func (p *Poller) onComplete(gen uint64, c *cycle, resp transport.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || !p.running {
		p.logger.Debug().Str("cycle", c.id).Msg("Ignoring completion after stop")
		return
	}
	if c.abortSource != AbortSourceNone || c.terminal {
		p.logger.Debug().
			Str("cycle", c.id).
			Str("abort_source", string(c.abortSource)).
			Msg("Ignoring completion of aborted cycle")
		return
	}

	cfg := p.cfg
	c.terminal = true
	p.bestEffort("stop abort timer", stopFunc(c.abortTimer))

	st := c.status
	st.ResponseTime = p.clock.Now()
	st.StatusCode = resp.StatusCode
	st.Body = resp.Body

	if resp.Err == nil && resp.StatusCode == http.StatusOK {
		st.State = StateCompleted
		if st.Body == nil {
			st.Body = []byte{}
		}
		p.record(st, "")
		cfg.CompletedCount++

		p.logger.Debug().
			Str("cycle", c.id).
			Dur("latency", resp.Latency).
			Int("completed", cfg.CompletedCount).
			Msg("Cycle completed")

		if cfg.CompletedCount >= cfg.MaxRequests {
			p.stopLocked("request budget reached")
		} else if cfg.AbortedCount >= cfg.MaxAbortedRequests {
			p.stopLocked("abort budget exhausted")
		}
		return
	}

	c.abortSource = AbortSourceResponse
	cfg.AbortSource = AbortSourceResponse
	cfg.AbortedCount++
	st.State = StateAborted

	event := p.logger.Warn().
		Str("cycle", c.id).
		Int("status_code", resp.StatusCode)

	errMsg := ""
	if resp.Err != nil {
		errMsg = resp.Err.Error()
	} else {
		se := &transport.StatusError{Code: resp.StatusCode}
		errMsg = se.Error()
		event = event.Bool("temporary", se.Temporary())
	}

	event.Str("error", errMsg).Msg("Request failed, stopping")

	p.record(st, errMsg)
	p.stopLocked(fmt.Sprintf("request failed (status %d)", resp.StatusCode))
}

func abortFunc(req transport.Request) func() error {
	return func() error {
		req.Abort()
		return nil
	}
}
