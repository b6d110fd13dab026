package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/pingpoll/internal/poller"
	"github.com/rivo/tview"
)

const (
	maxLogLines    = 50
	lineBacklog    = 256
	minBarWidth    = 10
	defaultRefresh = 500 * time.Millisecond
)

// ErrBacklogFull is returned by Notify when the display is behind and the
// line was dropped.
var ErrBacklogFull = errors.New("tui: line backlog full")

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{RefreshRate: defaultRefresh}
}

// App is the polling dashboard. It doubles as the poller's visual sink.
type App struct {
	app      *tview.Application
	target   *tview.TextView
	progress *tview.TextView
	counters *tview.TextView
	last     *tview.TextView
	log      *tview.TextView
	status   *tview.TextView

	config Config

	// lines carries status lines from the poller. Notify never blocks on it.
	lines chan string

	// stopPolling is invoked by the 's' key
	stopPolling func()

	mu sync.Mutex

	// Ring buffer of received lines (guarded by mu)
	logBuf   [maxLogLines]string
	logCount int
	dropped  int

	sessionStart time.Time
	snap         poller.Snapshot

	// Last-rendered content for change detection
	lastTarget   string
	lastProgress string
	lastCounters string
	lastLast     string
	lastLog      string

	// Cached progress bar width, updated only from a positive inner rect
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// New creates a dashboard with default config
func New() *App {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a dashboard with the given config
func NewWithConfig(cfg Config) *App {
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		lines:        make(chan string, lineBacklog),
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.target = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.target.SetBorder(true).
		SetTitle(" Target ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.counters = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.counters.SetBorder(true).
		SetTitle(" Counters ").
		SetTitleAlign(tview.AlignLeft)

	a.last = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.last.SetBorder(true).
		SetTitle(" Last Request ").
		SetTitleAlign(tview.AlignLeft)

	a.log = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.log.SetBorder(true).
		SetTitle(" Log ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  s:stop polling[-]")

	// Top: target | progress
	// Middle: counters | last request
	// Bottom: log
	middleRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.counters, 0, 1, false).
		AddItem(a.last, 0, 2, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.target, 4, 1, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(middleRow, 8, 1, false).
		AddItem(a.log, 0, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case 's', 'S':
		if a.stopPolling != nil {
			a.stopPolling()
		}
		return nil
	}
	return event
}

// Notify queues line for the log panel. It never blocks; when the display
// falls behind the line is dropped and ErrBacklogFull returned.
func (a *App) Notify(line string) error {
	select {
	case a.lines <- line:
		return nil
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		return ErrBacklogFull
	}
}

// Run blocks until the user quits or ctx is cancelled. snapshot is polled on
// every refresh; stop is bound to the 's' key.
func (a *App) Run(ctx context.Context, snapshot func() poller.Snapshot, stop func()) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	a.stopPolling = stop

	go a.handleUpdates(ctx, snapshot)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleUpdates drains the line channel and redraws from a single ticker
func (a *App) handleUpdates(ctx context.Context, snapshot func() poller.Snapshot) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-a.lines:
				a.mu.Lock()
				a.addLine(line)
				a.mu.Unlock()
			}
		}
	}()

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = defaultRefresh
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			if snapshot != nil {
				s := snapshot()
				a.mu.Lock()
				a.snap = s
				a.mu.Unlock()
			}
			a.refresh()
		}
	}
}

// addLine writes into the ring buffer. Must be called with a.mu held.
func (a *App) addLine(line string) {
	a.logBuf[a.logCount%maxLogLines] = line
	a.logCount++
}

// recentLines returns buffered lines oldest first. Must be called with a.mu
// held.
func (a *App) recentLines() []string {
	n := a.logCount
	if n > maxLogLines {
		n = maxLogLines
	}
	result := make([]string, n)
	start := a.logCount - n
	for i := 0; i < n; i++ {
		result[i] = a.logBuf[(start+i)%maxLogLines]
	}
	return result
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		setIfChanged(a.target, &a.lastTarget, renderTarget(a.snap))

		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < minBarWidth {
			a.lastBarWidth = minBarWidth
		}
		setIfChanged(a.progress, &a.lastProgress, renderProgress(a.snap, a.lastBarWidth))

		setIfChanged(a.counters, &a.lastCounters, renderCounters(a.snap, time.Since(a.sessionStart), a.dropped))
		setIfChanged(a.last, &a.lastLast, renderLast(a.snap.Last))

		text := renderLog(a.recentLines())
		if text != a.lastLog {
			a.lastLog = text
			a.log.SetText(text)
			a.log.ScrollToEnd()
		}
	})
}

func setIfChanged(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

func renderTarget(s poller.Snapshot) string {
	if s.URL == "" {
		return "[gray]Not polling[-]"
	}

	state := "[green]▶ running[-]"
	if !s.Running {
		state = "[yellow]■ idle[-]"
	}
	return fmt.Sprintf("[white::b]%s[-:-:-]\n%s  [gray]%s every %s[-]",
		tview.Escape(s.URL), state, tview.Escape(s.Profile), s.Interval)
}

func renderProgress(s poller.Snapshot, width int) string {
	if s.MaxRequests <= 0 {
		return ""
	}
	bar := buildProgressBar(s.CompletedCount, s.MaxRequests, width)
	return fmt.Sprintf("%5d %s %-5d", s.CompletedCount, bar, s.MaxRequests)
}

func renderCounters(s poller.Snapshot, elapsed time.Duration, dropped int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Issued:    %d\n", s.Issued))
	sb.WriteString(fmt.Sprintf("Completed: [green]%d[-]\n", s.CompletedCount))

	color := "white"
	if s.AbortedCount > 0 {
		color = "red"
	}
	sb.WriteString(fmt.Sprintf("Aborted:   [%s]%d[-] / %d\n", color, s.AbortedCount, s.MaxAbortedRequests))
	if dropped > 0 {
		sb.WriteString(fmt.Sprintf("Dropped:   [yellow]%d[-]\n", dropped))
	}
	sb.WriteString(fmt.Sprintf("Session:   %s", formatDuration(elapsed)))
	return sb.String()
}

func renderLast(st poller.Status) string {
	if st.State == poller.StateNone {
		return "[gray]No request yet[-]"
	}

	var sb strings.Builder
	switch st.State {
	case poller.StateCompleted:
		sb.WriteString("[green]✓ COMPLETED[-]")
	default:
		sb.WriteString("[red]✗ ABORTED[-]")
	}
	if st.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf("  [gray]HTTP %d[-]", st.StatusCode))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Request:  %s\n", poller.FormatTimestamp(st.RequestTime)))
	sb.WriteString(fmt.Sprintf("Response: %s\n", poller.FormatTimestamp(st.ResponseTime)))
	if !st.RequestTime.IsZero() && !st.ResponseTime.IsZero() {
		sb.WriteString(fmt.Sprintf("Latency:  %s\n", st.ResponseTime.Sub(st.RequestTime)))
	}
	if st.CycleID != "" {
		sb.WriteString(fmt.Sprintf("[gray]%s[-]", st.CycleID))
	}
	return sb.String()
}

func renderLog(lines []string) string {
	if len(lines) == 0 {
		return "[gray]Waiting for the first cycle...[-]"
	}
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = tview.Escape(l)
	}
	return strings.Join(escaped, "\n")
}

// Stop stops the dashboard
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := float64(done) / float64(total)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
