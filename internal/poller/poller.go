package poller

import (
	"context"
	"sync"

	"github.com/jfmyers9/pingpoll/internal/history"
	"github.com/jfmyers9/pingpoll/pkg/transport"
	"github.com/rs/zerolog"
)

// Recorder persists cycle outcomes. *history.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options configures a Poller
type Options struct {
	Transport transport.Transport // Required: request capability
	Clock     Clock               // Optional: defaults to the real clock
	Console   Notifier            // Optional: sink used unless DebugMode
	Visual    Notifier            // Optional: sink used in DebugMode
	Recorder  Recorder            // Optional: cycle journal
	Logger    zerolog.Logger

	Short Profile // Optional: overrides ShortProfile fields that are set
	Long  Profile // Optional: overrides LongProfile fields that are set

	// Debug and LogToConsole are applied to ShortPoll and LongPoll.
	// Nil keeps the Merge defaults.
	Debug        *bool
	LogToConsole *bool

	// OutputWidth truncates response bodies in notifier lines (0 = off)
	OutputWidth int
}

// Poller polls one URL at a fixed interval. All state is guarded by mu,
// which also serializes every timer and transport callback.
type Poller struct {
	mu sync.Mutex

	transport transport.Transport
	clock     Clock
	console   Notifier
	visual    Notifier
	recorder  Recorder
	logger    zerolog.Logger

	short        Profile
	long         Profile
	debug        *bool
	logToConsole *bool
	outputWidth  int

	cfg     *PollConfig
	status  Status
	running bool
	gen     uint64 // bumped on every start and stop
	next    transport.Request
	issued  int
	done    chan struct{}
}

// New creates an idle Poller
func New(opts Options) *Poller {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	done := make(chan struct{})
	close(done)

	return &Poller{
		transport:    opts.Transport,
		clock:        clock,
		console:      opts.Console,
		visual:       opts.Visual,
		recorder:     opts.Recorder,
		logger:       opts.Logger.With().Str("component", "poller").Logger(),
		short:        opts.Short.orDefault(ShortProfile),
		long:         opts.Long.orDefault(LongProfile),
		debug:        opts.Debug,
		logToConsole: opts.LogToConsole,
		outputWidth:  opts.OutputWidth,
		done:         done,
	}
}

// ShortPoll stops any running profile and polls url with the short profile.
// Returns false if polling could not start.
func (p *Poller) ShortPoll(url string) bool {
	p.Stop()
	return p.Start(p.short.userConfig(url, p.debug, p.logToConsole))
}

// LongPoll stops any running profile and polls url with the long profile.
// Returns false if polling could not start.
func (p *Poller) LongPoll(url string) bool {
	p.Stop()
	return p.Start(p.long.userConfig(url, p.debug, p.logToConsole))
}

// Stop halts polling. Safe to call when idle. Requests already dispatched
// are not cancelled; their callbacks are ignored.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked("stopped by caller")
}

// Running reports whether a profile is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done returns a channel closed when the current profile stops. It is
// already closed while idle.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
