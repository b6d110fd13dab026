/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	logFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pingpoll",
	Short: "Periodic HTTP GET poller",
	Long: `pingpoll repeatedly issues an HTTP GET to a fixed URL at a fixed interval.

Each cycle is classified as COMPLETED (HTTP 200 before the next tick is due)
or ABORTED (timeout, non-200 or transport failure). Polling stops after the
profile's request ceiling is reached, after five aborts, or on the first
non-200 response.

Two profiles are built in:
  short  every 5 seconds, at most 360 requests
  long   every 30 seconds, at most 120 requests`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
