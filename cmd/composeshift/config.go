package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/artpar/composeshift/internal/shell/cluster"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
// It is built once per invocation and passed to every component.
type Config struct {
	Prefix       string        `mapstructure:"prefix"`
	Project      string        `mapstructure:"project"`
	OutputDir    string        `mapstructure:"output_dir"`
	TemplatesDir string        `mapstructure:"templates_dir"`
	Cluster      ClusterConfig `mapstructure:"cluster"`
	Log          LogConfig     `mapstructure:"log"`
	Journal      JournalConfig `mapstructure:"journal"`
}

// ClusterConfig holds cluster CLI configuration.
type ClusterConfig struct {
	Binary string `mapstructure:"binary"`
	Server string `mapstructure:"server"` // API server used when logging in
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JournalConfig holds run journal configuration.
type JournalConfig struct {
	// Path is the SQLite file holding run history. Empty disables the journal.
	Path string `mapstructure:"path"`
}

var (
	// ErrMissingPrefix is returned when no naming prefix is configured.
	ErrMissingPrefix = errors.New("prefix is required")

	// ErrMissingProject is returned when a cluster run has no project.
	ErrMissingProject = errors.New("project is required for cluster operations")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrJournalDisabled is returned when history is requested without a journal.
	ErrJournalDisabled = errors.New("journal is disabled; set journal.path or --journal")
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"prefix":        "prefix",
	"project":       "project",
	"output-dir":    "output_dir",
	"templates-dir": "templates_dir",
	"oc-binary":     "cluster.binary",
	"server":        "cluster.server",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"journal":       "journal.path",
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from defaults, file, environment and flags,
// in increasing order of precedence. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("prefix", "")
	v.SetDefault("project", "")
	v.SetDefault("output_dir", ".")
	v.SetDefault("templates_dir", "templates")
	v.SetDefault("cluster.binary", cluster.DefaultBinary)
	v.SetDefault("cluster.server", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("journal.path", "")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("COMPOSESHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings a mode needs.
func (c *Config) Validate(mode rollout.Mode) error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if strings.TrimSpace(c.Prefix) == "" {
		return ErrMissingPrefix
	}
	if mode.TouchesCluster() && strings.TrimSpace(c.Project) == "" {
		return ErrMissingProject
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w so that stdout only carries command output.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}
