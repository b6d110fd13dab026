package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jfmyers9/pingpoll/internal/config"
	"github.com/jfmyers9/pingpoll/internal/history"
	"github.com/jfmyers9/pingpoll/internal/poller"
	"github.com/jfmyers9/pingpoll/internal/tui"
	"github.com/jfmyers9/pingpoll/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// pollFlags are shared by the short and long commands
type pollFlags struct {
	debug   bool
	quiet   bool
	tui     bool
	history string
	width   int
}

var pollOpts pollFlags

var shortCmd = &cobra.Command{
	Use:   "short <url>",
	Short: "Poll a URL every 5 seconds, at most 360 times",
	Long: `Poll a URL with the short profile: one GET every 5 seconds until 360
requests have completed.

A request that has not answered one second before the next tick is aborted.
Polling stops early after five aborts or on the first non-200 response.

Press Ctrl-C to stop. A second Ctrl-C forces exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll(cmd, poller.ShortProfile.Name, args[0])
	},
}

var longCmd = &cobra.Command{
	Use:   "long <url>",
	Short: "Poll a URL every 30 seconds, at most 120 times",
	Long: `Poll a URL with the long profile: one GET every 30 seconds until 120
requests have completed.

A request that has not answered one second before the next tick is aborted.
Polling stops early after five aborts or on the first non-200 response.

Press Ctrl-C to stop. A second Ctrl-C forces exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll(cmd, poller.LongProfile.Name, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{shortCmd, longCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVar(&pollOpts.debug, "debug", false, "Route status lines to the visual sink (stdout, or the dashboard with --tui)")
		c.Flags().BoolVar(&pollOpts.quiet, "quiet", false, "Do not log status lines to the console")
		c.Flags().BoolVar(&pollOpts.tui, "tui", false, "Show a live dashboard (implies --debug)")
		c.Flags().StringVar(&pollOpts.history, "history", "", "Record cycles to this SQLite database (default: history.path from config; bare --history uses the data dir)")
		c.Flags().Lookup("history").NoOptDefVal = defaultHistoryFlag
		c.Flags().IntVar(&pollOpts.width, "width", 0, "Truncate response bodies to this many columns (default: output_width from config)")
	}
}

func runPoll(cmd *cobra.Command, profile, url string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer := setupLogger(logFile, logLevel)
	defer closer.Close()

	// A stderr logger would draw over the dashboard
	if pollOpts.tui && logFile == "" {
		logger = zerolog.Nop()
	}

	s, err := newSession(cfg, pollOpts, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Info().Msg("Shutdown signal received, stopping poller")
		cancel()

		<-sigChan
		logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return s.run(ctx, profile, url)
}

// session wires one poller run to its transport, journal and sinks
type session struct {
	poller    *poller.Poller
	client    *transport.Client
	journal   *history.Journal
	app       *tui.App
	retention time.Duration
	out       io.Writer
	logger    zerolog.Logger
}

func newSession(cfg *config.Config, flags pollFlags, logger zerolog.Logger, out io.Writer) (*session, error) {
	client, err := transport.New(transport.Config{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	s := &session{
		client:    client,
		retention: cfg.History.Retention,
		out:       out,
		logger:    logger,
	}

	opts := poller.Options{
		Transport: client,
		Console:   poller.NewLogNotifier(logger),
		Logger:    logger,
		Short: poller.Profile{
			IntervalSeconds: cfg.Short.IntervalSeconds,
			MaxRequests:     cfg.Short.MaxRequests,
		},
		Long: poller.Profile{
			IntervalSeconds: cfg.Long.IntervalSeconds,
			MaxRequests:     cfg.Long.MaxRequests,
		},
		OutputWidth: cfg.OutputWidth,
	}
	if flags.width > 0 {
		opts.OutputWidth = flags.width
	}

	debug := cfg.Debug || flags.debug || flags.tui
	logToConsole := cfg.LogToConsole && !flags.quiet
	opts.Debug = &debug
	opts.LogToConsole = &logToConsole

	if flags.tui {
		s.app = tui.New()
		opts.Visual = s.app
	} else {
		opts.Visual = poller.NotifierFunc(func(line string) error {
			_, err := fmt.Fprintln(out, line)
			return err
		})
	}

	path, err := historyPath(flags.history, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		journal, err := history.Open(path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.journal = journal
		opts.Recorder = journal
		logger.Info().Str("path", path).Msg("Recording cycles")
	}

	s.poller = poller.New(opts)
	return s, nil
}

// run starts profile against url and blocks until polling stops or ctx is
// cancelled
func (s *session) run(ctx context.Context, profile, url string) error {
	var ok bool
	switch profile {
	case poller.ShortProfile.Name:
		ok = s.poller.ShortPoll(url)
	case poller.LongProfile.Name:
		ok = s.poller.LongPoll(url)
	default:
		return fmt.Errorf("unknown profile %q", profile)
	}
	if !ok {
		return fmt.Errorf("failed to start %s polling of %s", profile, url)
	}

	if s.app != nil {
		if err := s.app.Run(ctx, s.poller.Snapshot, s.poller.Stop); err != nil {
			s.poller.Stop()
			return err
		}
		s.poller.Stop()
	} else {
		select {
		case <-s.poller.Done():
		case <-ctx.Done():
			s.poller.Stop()
		}
	}

	snap := s.poller.Snapshot()
	s.logger.Info().
		Str("url", snap.URL).
		Str("profile", snap.Profile).
		Int("completed", snap.CompletedCount).
		Int("aborted", snap.AbortedCount).
		Msg("Polling finished")

	fmt.Fprintf(s.out, "%s %s: %d/%d completed, %d aborted\n",
		snap.Profile, snap.URL, snap.CompletedCount, snap.MaxRequests, snap.AbortedCount)

	return nil
}

// Close prunes and closes the journal and releases idle connections
func (s *session) Close() {
	if s.journal != nil {
		if s.retention > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			deleted, err := s.journal.Cleanup(ctx, s.retention)
			cancel()
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to prune history")
			} else if deleted > 0 {
				s.logger.Info().Int64("deleted", deleted).Msg("Pruned old history entries")
			}
		}
		if err := s.journal.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close history")
		}
		s.journal = nil
	}
	s.client.Close()
}

// defaultHistoryFlag is the value of a bare --history or --db flag
const defaultHistoryFlag = "default"

// historyPath picks the journal path: flag first, then config. A bare flag
// selects history.db in the data directory.
func historyPath(flag string, cfg *config.Config) (string, error) {
	switch flag {
	case "":
		return cfg.History.Path, nil
	case defaultHistoryFlag:
		dir, err := config.DataDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve data directory: %w", err)
		}
		return filepath.Join(dir, "history.db"), nil
	default:
		return flag, nil
	}
}
