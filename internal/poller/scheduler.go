package poller

// Start validates cfg, stops any running profile and arms the repeating
// timer. The first request is sent one full interval later.
func (p *Poller) Start(ucfg UserConfig) bool {
	if !Validate(ucfg) {
		p.logger.Error().Msg("Invalid configuration input")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked("replaced by new profile")

	cfg := Merge(ucfg)
	p.cfg = &cfg
	p.status = Status{}
	p.issued = 0

	// The first cycle's request is created up front so an unavailable
	// transport refuses to start.
	req, err := p.newRequest()
	if err != nil {
		p.logger.Error().Err(err).Msg("Transport unavailable")
		if cfg.LogToConsole {
			p.notify(p.console, "console", "Transport unavailable: "+err.Error())
		}
		return false
	}

	p.gen++
	gen := p.gen
	repeat, err := p.clock.Every(cfg.Interval(), func() { p.onTick(gen) })
	if err != nil {
		p.logger.Error().Err(err).Int("interval_seconds", cfg.IntervalSeconds).Msg("Failed to arm repeating timer")
		p.bestEffort("abort unused request", abortFunc(req))
		return false
	}

	cfg.repeatTimer = repeat
	p.next = req
	p.running = true
	p.done = make(chan struct{})

	p.logger.Info().
		Str("url", cfg.URL).
		Str("profile", cfg.Profile).
		Dur("interval", cfg.Interval()).
		Int("max_requests", cfg.MaxRequests).
		Msg("Polling started")

	if cfg.IntervalSeconds <= 1 {
		p.logger.Warn().
			Dur("abort_delay", cfg.AbortDelay()).
			Msg("Interval leaves no time before the abort check; every cycle will abort")
	}

	return true
}

// stopLocked moves to Idle. Must be called with p.mu held.
func (p *Poller) stopLocked(reason string) {
	if !p.running {
		return
	}

	p.running = false
	p.gen++

	cfg := p.cfg
	p.bestEffort("stop repeat timer", stopFunc(cfg.repeatTimer))
	p.bestEffort("stop abort timer", stopFunc(cfg.abortTimer))
	cfg.repeatTimer = nil
	cfg.abortTimer = nil

	if p.next != nil {
		p.bestEffort("abort unused request", abortFunc(p.next))
		p.next = nil
	}

	close(p.done)

	p.logger.Info().
		Str("reason", reason).
		Int("completed", cfg.CompletedCount).
		Int("aborted", cfg.AbortedCount).
		Msg("Polling stopped")
}

// onTick starts a cycle: arm the abort check, send, clear the abort source
func (p *Poller) onTick(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || !p.running {
		return
	}

	cfg := p.cfg
	c := p.newCycle()
	c.abortTimer = p.clock.AfterFunc(cfg.AbortDelay(), func() { p.onAbortCheck(gen, c) })
	cfg.abortTimer = c.abortTimer

	if !p.issue(gen, c) {
		return
	}

	cfg.AbortSource = AbortSourceNone
}

// onAbortCheck aborts the cycle if it has not reached a terminal state
func (p *Poller) onAbortCheck(gen uint64, c *cycle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || !p.running || c.terminal {
		return
	}

	cfg := p.cfg
	c.terminal = true
	c.abortSource = AbortSourceTimer
	cfg.AbortSource = AbortSourceTimer
	cfg.AbortedCount++

	if c.req != nil {
		p.bestEffort("abort request", abortFunc(c.req))
	}

	p.logger.Debug().
		Str("cycle", c.id).
		Int("aborted", cfg.AbortedCount).
		Msg("Cycle aborted by timer")

	p.record(Status{CycleID: c.id, State: StateAborted}, "no response before abort deadline")

	if cfg.AbortedCount >= cfg.MaxAbortedRequests {
		p.stopLocked("abort budget exhausted")
	}
}

func stopFunc(t Timer) func() error {
	return func() error {
		if t != nil {
			t.Stop()
		}
		return nil
	}
}
