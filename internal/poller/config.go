package poller

import "time"

// DefaultMaxAbortedRequests is the abort budget of every profile
const DefaultMaxAbortedRequests = 5

// AbortSource marks which mechanism aborted a cycle
type AbortSource string

const (
	AbortSourceNone     AbortSource = ""
	AbortSourceTimer    AbortSource = "POLLER"   // the per-cycle abort timer fired first
	AbortSourceResponse AbortSource = "RESPONSE" // non-200 or transport failure
)

// Profile is a named interval and request ceiling
type Profile struct {
	Name            string
	IntervalSeconds int
	MaxRequests     int
}

var (
	// ShortProfile polls every 5 seconds, at most 360 times
	ShortProfile = Profile{Name: "short", IntervalSeconds: 5, MaxRequests: 360}

	// LongProfile polls every 30 seconds, at most 120 times
	LongProfile = Profile{Name: "long", IntervalSeconds: 30, MaxRequests: 120}
)

// UserConfig holds caller-supplied polling parameters.
// Nil booleans mean "not set" and are filled in by Merge.
type UserConfig struct {
	URL             string
	IntervalSeconds int
	MaxRequests     int
	DebugMode       *bool
	LogToConsole    *bool
	Profile         string
}

// PollConfig is the active configuration plus its mutable counters
type PollConfig struct {
	URL                string
	IntervalSeconds    int
	MaxRequests        int
	MaxAbortedRequests int
	DebugMode          bool
	LogToConsole       bool
	Profile            string

	CompletedCount int
	AbortedCount   int
	AbortSource    AbortSource

	repeatTimer Timer
	abortTimer  Timer
}

// Interval returns the tick period
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// AbortDelay returns how long after a tick the abort check fires: one second
// before the next tick. Zero or negative for intervals of one second or less.
func (c *PollConfig) AbortDelay() time.Duration {
	return time.Duration(c.IntervalSeconds-1) * time.Second
}

// Validate reports whether cfg can be started. Only the URL is checked.
func Validate(cfg UserConfig) bool {
	return cfg.URL != ""
}

// Merge fills defaults and resets all counters. It never reads prior state.
func Merge(cfg UserConfig) PollConfig {
	debug := false
	if cfg.DebugMode != nil {
		debug = *cfg.DebugMode
	}
	logToConsole := true
	if cfg.LogToConsole != nil {
		logToConsole = *cfg.LogToConsole
	}

	return PollConfig{
		URL:                cfg.URL,
		IntervalSeconds:    cfg.IntervalSeconds,
		MaxRequests:        cfg.MaxRequests,
		MaxAbortedRequests: DefaultMaxAbortedRequests,
		DebugMode:          debug,
		LogToConsole:       logToConsole,
		Profile:            cfg.Profile,
		CompletedCount:     0,
		AbortedCount:       0,
		AbortSource:        AbortSourceNone,
	}
}

// userConfig builds a UserConfig for a profile
func (p Profile) userConfig(url string, debug, logToConsole *bool) UserConfig {
	return UserConfig{
		URL:             url,
		IntervalSeconds: p.IntervalSeconds,
		MaxRequests:     p.MaxRequests,
		DebugMode:       debug,
		LogToConsole:    logToConsole,
		Profile:         p.Name,
	}
}

// orDefault returns p with zero fields taken from def
func (p Profile) orDefault(def Profile) Profile {
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.IntervalSeconds == 0 {
		p.IntervalSeconds = def.IntervalSeconds
	}
	if p.MaxRequests == 0 {
		p.MaxRequests = def.MaxRequests
	}
	return p
}
