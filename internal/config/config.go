package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/harrison/seqwatch/internal/naming"
	"github.com/harrison/seqwatch/internal/sweep"
	"gopkg.in/yaml.v3"
)

// HistoryConfig represents rename history configuration
type HistoryConfig struct {
	// Enabled turns on the sqlite rename journal
	Enabled bool `yaml:"enabled"`

	// DBPath is the journal location; relative paths resolve against the watched directory
	DBPath string `yaml:"db_path"`
}

// Config represents seqwatch configuration options
type Config struct {
	// Extension is a comma or pipe separated list of suffixes, e.g. "jpg,png"
	Extension string `yaml:"extension"`

	// Pattern is a raw suffix regular expression; it wins over Extension
	Pattern string `yaml:"pattern"`

	// IgnoreCase makes suffix matching case-insensitive
	IgnoreCase bool `yaml:"ignore_case"`

	// Digits is the width of the numeric stem
	Digits int `yaml:"digits"`

	// ScratchDir is the staging directory, relative to the watched directory
	ScratchDir string `yaml:"scratch_dir"`

	// MaxFilenameLength skips longer names and refuses longer new names
	MaxFilenameLength int `yaml:"max_filename_length"`

	// BufferSize is the intake buffer capacity
	BufferSize int `yaml:"buffer_size"`

	// BatchSize is the maximum number of items a worker extracts at once
	BatchSize int `yaml:"batch_size"`

	// BatchTimeout bounds how long a worker waits to fill a batch
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// Workers is the number of rename workers
	Workers int `yaml:"workers"`

	// MaxRetries is how many failures a filename may accumulate before it is refused
	MaxRetries int `yaml:"max_retries"`

	// ProbeAttempts is how many times a file is opened before it is deemed inaccessible
	ProbeAttempts int `yaml:"probe_attempts"`

	// ProbeDelay is the pause between probe attempts
	ProbeDelay time.Duration `yaml:"probe_delay"`

	// EventDedupWindow drops repeated filesystem events within this window
	EventDedupWindow time.Duration `yaml:"event_dedup_window"`

	// StatsInterval is the period of the stats report (0 disables it)
	StatsInterval time.Duration `yaml:"stats_interval"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set
	LogDir string `yaml:"log_dir"`

	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9464"
	MetricsAddr string `yaml:"metrics_addr"`

	// OrphanSweepCron schedules scratch recovery while watching (empty disables it)
	OrphanSweepCron string `yaml:"orphan_sweep_cron"`

	// RecoverOnExit moves leftover scratch files back on shutdown
	RecoverOnExit bool `yaml:"recover_on_exit"`

	// RequeueRestored re-offers a restored file immediately instead of waiting for a new event
	RequeueRestored bool `yaml:"requeue_restored"`

	// History contains rename journal configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Digits:            3,
		ScratchDir:        ".temp_rename",
		MaxFilenameLength: 255,
		BufferSize:        1000,
		BatchSize:         10,
		BatchTimeout:      500 * time.Millisecond,
		Workers:           3,
		MaxRetries:        3,
		ProbeAttempts:     2,
		ProbeDelay:        50 * time.Millisecond,
		EventDedupWindow:  10 * time.Second,
		StatsInterval:     10 * time.Second,
		LogLevel:          "info",
		RecoverOnExit:     true,
		RequeueRestored:   true,
		History: HistoryConfig{
			Enabled: false,
			DBPath:  filepath.Join(StateDirName, "history.db"),
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings and booleans are pointers so that an absent key
	// keeps its default.
	type yamlHistory struct {
		Enabled *bool  `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	}
	type yamlConfig struct {
		Extension         string      `yaml:"extension"`
		Pattern           string      `yaml:"pattern"`
		IgnoreCase        *bool       `yaml:"ignore_case"`
		Digits            int         `yaml:"digits"`
		ScratchDir        string      `yaml:"scratch_dir"`
		MaxFilenameLength int         `yaml:"max_filename_length"`
		BufferSize        int         `yaml:"buffer_size"`
		BatchSize         int         `yaml:"batch_size"`
		BatchTimeout      string      `yaml:"batch_timeout"`
		Workers           int         `yaml:"workers"`
		MaxRetries        int         `yaml:"max_retries"`
		ProbeAttempts     int         `yaml:"probe_attempts"`
		ProbeDelay        string      `yaml:"probe_delay"`
		EventDedupWindow  string      `yaml:"event_dedup_window"`
		StatsInterval     string      `yaml:"stats_interval"`
		LogLevel          string      `yaml:"log_level"`
		LogDir            string      `yaml:"log_dir"`
		MetricsAddr       string      `yaml:"metrics_addr"`
		OrphanSweepCron   string      `yaml:"orphan_sweep_cron"`
		RecoverOnExit     *bool       `yaml:"recover_on_exit"`
		RequeueRestored   *bool       `yaml:"requeue_restored"`
		History           yamlHistory `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.Extension, yamlCfg.Extension)
	setString(&cfg.Pattern, yamlCfg.Pattern)
	setString(&cfg.ScratchDir, yamlCfg.ScratchDir)
	setString(&cfg.LogLevel, yamlCfg.LogLevel)
	setString(&cfg.LogDir, yamlCfg.LogDir)
	setString(&cfg.MetricsAddr, yamlCfg.MetricsAddr)
	setString(&cfg.OrphanSweepCron, yamlCfg.OrphanSweepCron)
	setString(&cfg.History.DBPath, yamlCfg.History.DBPath)

	setInt(&cfg.Digits, yamlCfg.Digits)
	setInt(&cfg.MaxFilenameLength, yamlCfg.MaxFilenameLength)
	setInt(&cfg.BufferSize, yamlCfg.BufferSize)
	setInt(&cfg.BatchSize, yamlCfg.BatchSize)
	setInt(&cfg.Workers, yamlCfg.Workers)
	setInt(&cfg.MaxRetries, yamlCfg.MaxRetries)
	setInt(&cfg.ProbeAttempts, yamlCfg.ProbeAttempts)

	setBool(&cfg.IgnoreCase, yamlCfg.IgnoreCase)
	setBool(&cfg.RecoverOnExit, yamlCfg.RecoverOnExit)
	setBool(&cfg.RequeueRestored, yamlCfg.RequeueRestored)
	setBool(&cfg.History.Enabled, yamlCfg.History.Enabled)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"batch_timeout", yamlCfg.BatchTimeout, &cfg.BatchTimeout},
		{"probe_delay", yamlCfg.ProbeDelay, &cfg.ProbeDelay},
		{"event_dedup_window", yamlCfg.EventDedupWindow, &cfg.EventDedupWindow},
		{"stats_interval", yamlCfg.StatsInterval, &cfg.StatsInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", d.key, d.value, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .seqwatch/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(ConfigPath(dir))
}

// Marshal renders the configuration as YAML with durations as strings.
func (c *Config) Marshal() ([]byte, error) {
	out := map[string]interface{}{
		"extension":           c.Extension,
		"pattern":             c.Pattern,
		"ignore_case":         c.IgnoreCase,
		"digits":              c.Digits,
		"scratch_dir":         c.ScratchDir,
		"max_filename_length": c.MaxFilenameLength,
		"buffer_size":         c.BufferSize,
		"batch_size":          c.BatchSize,
		"batch_timeout":       c.BatchTimeout.String(),
		"workers":             c.Workers,
		"max_retries":         c.MaxRetries,
		"probe_attempts":      c.ProbeAttempts,
		"probe_delay":         c.ProbeDelay.String(),
		"event_dedup_window":  c.EventDedupWindow.String(),
		"stats_interval":      c.StatsInterval.String(),
		"log_level":           c.LogLevel,
		"log_dir":             c.LogDir,
		"metrics_addr":        c.MetricsAddr,
		"orphan_sweep_cron":   c.OrphanSweepCron,
		"recover_on_exit":     c.RecoverOnExit,
		"requeue_restored":    c.RequeueRestored,
		"history": map[string]interface{}{
			"enabled": c.History.Enabled,
			"db_path": c.History.DBPath,
		},
	}
	return yaml.Marshal(out)
}

// Overrides carries CLI flag values. Nil fields were not set on the command line.
type Overrides struct {
	Extension         *string
	Pattern           *string
	IgnoreCase        *bool
	Digits            *int
	ScratchDir        *string
	MaxFilenameLength *int
	BufferSize        *int
	BatchSize         *int
	BatchTimeout      *time.Duration
	Workers           *int
	MaxRetries        *int
	LogLevel          *string
	LogDir            *string
	MetricsAddr       *string
	HistoryDB         *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file and environment settings
func (c *Config) MergeWithFlags(o Overrides) {
	mergeValue(&c.Extension, o.Extension)
	mergeValue(&c.Pattern, o.Pattern)
	mergeValue(&c.IgnoreCase, o.IgnoreCase)
	mergeValue(&c.Digits, o.Digits)
	mergeValue(&c.ScratchDir, o.ScratchDir)
	mergeValue(&c.MaxFilenameLength, o.MaxFilenameLength)
	mergeValue(&c.BufferSize, o.BufferSize)
	mergeValue(&c.BatchSize, o.BatchSize)
	mergeValue(&c.BatchTimeout, o.BatchTimeout)
	mergeValue(&c.Workers, o.Workers)
	mergeValue(&c.MaxRetries, o.MaxRetries)
	mergeValue(&c.LogLevel, o.LogLevel)
	mergeValue(&c.LogDir, o.LogDir)
	mergeValue(&c.MetricsAddr, o.MetricsAddr)
	if o.HistoryDB != nil {
		c.History.DBPath = *o.HistoryDB
		c.History.Enabled = *o.HistoryDB != ""
	}
}

// ResolvePattern returns the suffix regular expression: Pattern if set,
// otherwise one built from Extension.
func (c *Config) ResolvePattern() string {
	if c.Pattern != "" {
		return c.Pattern
	}
	return naming.PatternFromExtensions(c.Extension)
}

// MatcherOptions builds the filename matcher settings.
func (c *Config) MatcherOptions() naming.Options {
	return naming.Options{
		Pattern:       c.ResolvePattern(),
		IgnoreCase:    c.IgnoreCase,
		Digits:        c.Digits,
		MaxNameLength: c.MaxFilenameLength,
		ScratchName:   filepath.Base(c.ScratchDir),
	}
}

// RequireSuffix reports an error unless a suffix is configured. Commands
// that only touch the scratch directory or history do not need one.
func (c *Config) RequireSuffix() error {
	if strings.TrimSpace(c.Extension) == "" && c.Pattern == "" {
		return fmt.Errorf("either extension or pattern must be set")
	}
	return nil
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
		}
	}

	// int64 holds 18 decimal digits; the file system gives out well before that
	if c.Digits < 1 || c.Digits > 18 {
		return fmt.Errorf("digits must be between 1 and 18, got %d", c.Digits)
	}
	if c.MaxFilenameLength < 0 {
		return fmt.Errorf("max_filename_length must be >= 0, got %d", c.MaxFilenameLength)
	}

	scratch := filepath.Clean(c.ScratchDir)
	if c.ScratchDir == "" || scratch == "." || scratch == ".." {
		return fmt.Errorf("scratch_dir must name a directory, got %q", c.ScratchDir)
	}

	positive := []struct {
		key   string
		value int
	}{
		{"buffer_size", c.BufferSize},
		{"batch_size", c.BatchSize},
		{"workers", c.Workers},
		{"max_retries", c.MaxRetries},
		{"probe_attempts", c.ProbeAttempts},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.key, p.value)
		}
	}

	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be > 0, got %v", c.BatchTimeout)
	}
	if c.ProbeDelay < 0 {
		return fmt.Errorf("probe_delay must be >= 0, got %v", c.ProbeDelay)
	}
	if c.EventDedupWindow < 0 {
		return fmt.Errorf("event_dedup_window must be >= 0, got %v", c.EventDedupWindow)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must be >= 0, got %v", c.StatsInterval)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.OrphanSweepCron != "" {
		if err := sweep.Validate(c.OrphanSweepCron); err != nil {
			return fmt.Errorf("invalid orphan_sweep_cron: %w", err)
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func mergeValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
