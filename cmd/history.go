package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jfmyers9/pingpoll/internal/config"
	"github.com/jfmyers9/pingpoll/internal/history"
	"github.com/jfmyers9/pingpoll/internal/poller"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	historyDB     string
	historyLimit  int
	historyFormat string
	historyPrune  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded poll cycles",
	Long: `Show the most recent cycles recorded by 'pingpoll short --history' or
'pingpoll long --history', newest first.

Use --format yaml for machine-readable output and --prune to delete entries
older than the given age before listing.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyDB, "db", "", "History database (default: history.path from config; bare --db uses the data dir)")
	historyCmd.Flags().Lookup("db").NoOptDefVal = defaultHistoryFlag
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to show")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "Output format (table, yaml)")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete entries older than this age first (e.g. 72h)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "table" && historyFormat != "yaml" {
		return fmt.Errorf("unknown format %q (want table or yaml)", historyFormat)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	path, err := historyPath(historyDB, cfg)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no history database configured; pass --db or set history.path")
	}

	journal, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer journal.Close()

	return showHistory(cmd.Context(), cmd.OutOrStdout(), journal, historyLimit, historyFormat, historyPrune)
}

func showHistory(ctx context.Context, out io.Writer, journal *history.Journal, limit int, format string, prune time.Duration) error {
	if prune > 0 {
		deleted, err := journal.Cleanup(ctx, prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d entries older than %s\n", deleted, prune)
	}

	entries, err := journal.Recent(ctx, limit)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		return writeYAML(out, entries)
	default:
		completed, err := journal.Count(ctx, history.StateCompleted)
		if err != nil {
			return err
		}
		aborted, err := journal.Count(ctx, history.StateAborted)
		if err != nil {
			return err
		}
		writeTable(out, entries)
		fmt.Fprintf(out, "\n%d completed, %d aborted\n", completed, aborted)
		return nil
	}
}

// historyRecord is the YAML form of a journal entry
type historyRecord struct {
	ID           string `yaml:"id"`
	URL          string `yaml:"url"`
	Profile      string `yaml:"profile,omitempty"`
	State        string `yaml:"state"`
	StatusCode   int    `yaml:"status_code,omitempty"`
	RequestTime  string `yaml:"request_time"`
	ResponseTime string `yaml:"response_time"`
	Body         string `yaml:"body,omitempty"`
	Error        string `yaml:"error,omitempty"`
	RecordedAt   string `yaml:"recorded_at"`
}

func writeYAML(out io.Writer, entries []history.Entry) error {
	records := make([]historyRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, historyRecord{
			ID:           e.ID,
			URL:          e.URL,
			Profile:      e.Profile,
			State:        e.State,
			StatusCode:   e.StatusCode,
			RequestTime:  poller.FormatTimestamp(e.RequestTime),
			ResponseTime: poller.FormatTimestamp(e.ResponseTime),
			Body:         e.Body,
			Error:        e.Error,
			RecordedAt:   e.RecordedAt.Format(time.RFC3339),
		})
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return enc.Close()
}

const (
	colState  = 9
	colCode   = 4
	colTime   = 23
	colOutput = 32
)

func writeTable(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No cycles recorded")
		return
	}

	fmt.Fprintln(out, tableRow("STATE", "CODE", "REQUEST", "RESPONSE", "OUTPUT"))
	for _, e := range entries {
		code := "-"
		if e.StatusCode != 0 {
			code = strconv.Itoa(e.StatusCode)
		}
		output := e.Body
		if e.State == history.StateAborted && e.Error != "" {
			output = e.Error
		}
		// Keep each entry on one row
		output = strings.Join(strings.Fields(output), " ")

		fmt.Fprintln(out, tableRow(
			e.State,
			code,
			poller.FormatTimestamp(e.RequestTime),
			poller.FormatTimestamp(e.ResponseTime),
			output,
		))
	}
}

func tableRow(state, code, request, response, output string) string {
	return strings.TrimRight(strings.Join([]string{
		padToWidth(state, colState),
		padToWidth(code, colCode),
		padToWidth(request, colTime),
		padToWidth(response, colTime),
		padToWidth(output, colOutput),
	}, "  "), " ")
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis

		// Wide runes can leave the result one column short
		if resultWidth := runewidth.StringWidth(result); resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	}

	return text + strings.Repeat(" ", width-currentWidth)
}
