package poller

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Notifier receives formatted status lines
type Notifier interface {
	Notify(line string) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(line string) error

// Notify calls f(line)
func (f NotifierFunc) Notify(line string) error {
	return f(line)
}

// LogNotifier is the console sink. It writes each line as an info event.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a console sink on logger
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "console").Logger()}
}

// Notify logs line
func (n *LogNotifier) Notify(line string) error {
	n.logger.Info().Msg(line)
	return nil
}

// notify sends line to sink, swallowing every failure. Must be called with
// p.mu held.
func (p *Poller) notify(sink Notifier, name, line string) {
	if sink == nil {
		p.logger.Debug().Str("sink", name).Msg("No notifier configured")
		return
	}
	p.bestEffort("notify "+name, func() error {
		return sink.Notify(line)
	})
}

// bestEffort runs a side effect whose failure must not reach the caller.
// Errors are logged at debug level, panics at warn.
func (p *Poller) bestEffort(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn().
				Str("op", op).
				Str("panic", fmt.Sprint(r)).
				Msg("Side effect panicked")
		}
	}()

	if err := fn(); err != nil {
		p.logger.Debug().Err(err).Str("op", op).Msg("Side effect failed")
	}
}
