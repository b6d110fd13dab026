package cmd

import (
	"fmt"
	"io"

	"github.com/jfmyers9/pingpoll/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pingpoll configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Write the effective configuration (defaults, config file, .env and
PINGPOLL_* environment variables merged) to ~/.config/pingpoll/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		path, err := cfg.Save()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return writeConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

type profileView struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxRequests     int `yaml:"max_requests"`
}

// configView mirrors the config file layout
type configView struct {
	Debug        bool        `yaml:"debug"`
	LogToConsole bool        `yaml:"log_to_console"`
	OutputWidth  int         `yaml:"output_width"`
	Short        profileView `yaml:"short"`
	Long         profileView `yaml:"long"`
	History      struct {
		Path      string `yaml:"path"`
		Retention string `yaml:"retention"`
	} `yaml:"history"`
	HTTP struct {
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"http"`
}

func writeConfig(out io.Writer, cfg *config.Config) error {
	v := configView{
		Debug:        cfg.Debug,
		LogToConsole: cfg.LogToConsole,
		OutputWidth:  cfg.OutputWidth,
		Short:        profileView(cfg.Short),
		Long:         profileView(cfg.Long),
	}
	v.History.Path = cfg.History.Path
	v.History.Retention = cfg.History.Retention.String()
	v.HTTP.Timeout = cfg.HTTP.Timeout.String()
	v.HTTP.UserAgent = cfg.HTTP.UserAgent

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}
