package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Route every status line to the visual sink
	Debug bool

	// Send status lines to the console sink when not in debug mode
	LogToConsole bool

	// Truncate response bodies in status lines to this many columns (0 = off)
	OutputWidth int

	Short   ProfileConfig
	Long    ProfileConfig
	History HistoryConfig
	HTTP    HTTPConfig
}

// ProfileConfig overrides a built-in poll profile
type ProfileConfig struct {
	IntervalSeconds int
	MaxRequests     int
}

// HistoryConfig holds cycle journal settings
type HistoryConfig struct {
	// Path to the SQLite journal. Empty disables recording.
	Path string

	// Rows older than this are pruned at the end of a run (0 = keep)
	Retention time.Duration
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Load reads configuration from .env, the config file and environment
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// PINGPOLL_HTTP_TIMEOUT overrides http.timeout
	v.SetEnvPrefix("PINGPOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Debug:        v.GetBool("debug"),
		LogToConsole: v.GetBool("log_to_console"),
		OutputWidth:  v.GetInt("output_width"),
		Short: ProfileConfig{
			IntervalSeconds: v.GetInt("short.interval_seconds"),
			MaxRequests:     v.GetInt("short.max_requests"),
		},
		Long: ProfileConfig{
			IntervalSeconds: v.GetInt("long.interval_seconds"),
			MaxRequests:     v.GetInt("long.max_requests"),
		},
		History: HistoryConfig{
			Path:      v.GetString("history.path"),
			Retention: v.GetDuration("history.retention"),
		},
		HTTP: HTTPConfig{
			Timeout:   v.GetDuration("http.timeout"),
			UserAgent: v.GetString("http.user_agent"),
		},
	}

	if cfg.OutputWidth < 0 {
		return nil, fmt.Errorf("output_width must not be negative: %d", cfg.OutputWidth)
	}
	if cfg.HTTP.Timeout < 0 {
		return nil, fmt.Errorf("http.timeout must not be negative: %s", cfg.HTTP.Timeout)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_to_console", true)
	v.SetDefault("output_width", 0)
	v.SetDefault("short.interval_seconds", 5)
	v.SetDefault("short.max_requests", 360)
	v.SetDefault("long.interval_seconds", 30)
	v.SetDefault("long.max_requests", 120)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention", 7*24*time.Hour)
	v.SetDefault("http.timeout", 2*time.Minute)
	v.SetDefault("http.user_agent", "pingpoll/1.0")
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "pingpoll")

	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// DataDir returns the default directory for the cycle journal
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "pingpoll"), nil
}

// Save writes configuration to file and returns its path
func (c *Config) Save() (string, error) {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("debug", c.Debug)
	v.Set("log_to_console", c.LogToConsole)
	v.Set("output_width", c.OutputWidth)
	v.Set("short.interval_seconds", c.Short.IntervalSeconds)
	v.Set("short.max_requests", c.Short.MaxRequests)
	v.Set("long.interval_seconds", c.Long.IntervalSeconds)
	v.Set("long.max_requests", c.Long.MaxRequests)
	v.Set("history.path", c.History.Path)
	v.Set("history.retention", c.History.Retention.String())
	v.Set("http.timeout", c.HTTP.Timeout.String())
	v.Set("http.user_agent", c.HTTP.UserAgent)

	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configFile, nil
}
