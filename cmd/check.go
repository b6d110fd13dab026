package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"github.com/jfmyers9/pingpoll/internal/config"
	"github.com/jfmyers9/pingpoll/internal/poller"
	"github.com/jfmyers9/pingpoll/pkg/transport"
	"github.com/spf13/cobra"
)

const defaultCheckFormat = "{{.State}} {{.StatusCode}} {{.Latency}} {{.Body}}"

// errCheckFailed makes Execute exit 1 after the result has been printed
var errCheckFailed = errors.New("check did not complete")

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Send a single GET and print the outcome",
	Long: `Send one GET to a URL and print the outcome, useful for status bars or
scripts before starting a poll.

The output format is a Go template. Available fields: .URL, .State,
.StatusCode, .Latency, .Body, .Error, .RequestTime, .ResponseTime

Exit codes:
  0 - HTTP 200
  1 - any other status, a transport failure or a timeout`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("format", "f", defaultCheckFormat, "Output format template")
	checkCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	checkCmd.Flags().Duration("timeout", 0, "Request timeout (default: http.timeout from config)")
}

// checkResult is the template data for check output
type checkResult struct {
	URL          string
	State        string
	StatusCode   int
	Latency      time.Duration
	Body         string
	Error        string
	RequestTime  string
	ResponseTime string
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = cfg.HTTP.Timeout
	}

	client, err := transport.New(transport.Config{Timeout: timeout, UserAgent: cfg.HTTP.UserAgent})
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer client.Close()

	result, err := checkOnce(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	formatStr, _ := cmd.Flags().GetString("format")
	output, err := formatCheck(result, formatStr)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}
	if width > 0 {
		output = padToWidth(output, width)
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)

	if result.State != poller.StateCompleted.String() {
		// The printed result already says why
		cmd.SilenceErrors = true
		return errCheckFailed
	}
	return nil
}

// checkOnce sends a single GET and waits for it, aborting when ctx ends
func checkOnce(ctx context.Context, t transport.Transport, url string) (checkResult, error) {
	req, err := t.NewRequest()
	if err != nil {
		return checkResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	done := make(chan transport.Response, 1)
	sent := time.Now()
	req.Send(url, func(resp transport.Response) { done <- resp })

	var resp transport.Response
	select {
	case resp = <-done:
	case <-ctx.Done():
		req.Abort()
		resp = <-done
	}
	received := time.Now()

	result := checkResult{
		URL:          url,
		StatusCode:   resp.StatusCode,
		Latency:      resp.Latency.Round(time.Millisecond),
		Body:         string(resp.Body),
		RequestTime:  poller.FormatTimestamp(sent),
		ResponseTime: poller.FormatTimestamp(received),
		State:        poller.StateCompleted.String(),
	}
	switch {
	case resp.Err != nil:
		result.State = poller.StateAborted.String()
		result.Error = resp.Err.Error()
	case resp.StatusCode != http.StatusOK:
		result.State = poller.StateAborted.String()
		result.Error = (&transport.StatusError{Code: resp.StatusCode}).Error()
	}
	return result, nil
}

// formatCheck applies the template to the check result
func formatCheck(result checkResult, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, result); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}
