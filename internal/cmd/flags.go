package cmd

import (
	"fmt"
	"time"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/spf13/cobra"
)

// addConfigFlag registers --config on commands that read the watched
// directory's configuration.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: <dir>/.seqwatch/config.yaml)")
}

// addMatchFlags registers the flags that decide which files are renamed and
// how. They mirror the config keys of the same name.
func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("extension", "e", "", "File extension(s) to rename, comma or | separated (e.g. jpg,png)")
	cmd.Flags().StringP("pattern", "p", "", "Suffix regular expression; overrides --extension")
	cmd.Flags().BoolP("ignore-case", "i", false, "Match the suffix case-insensitively")
	cmd.Flags().IntP("digits", "d", 3, "Width of the numeric name")
	cmd.Flags().StringP("temp-dir", "t", ".temp_rename", "Scratch directory, relative to the watched directory")
	cmd.Flags().Int("max-filename-length", 255, "Skip names longer than this (0 = no limit)")
}

// loadConfig builds the effective configuration for dir. Precedence, lowest
// first: defaults, config file, .env and SEQWATCH_* environment, flags.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	if err := config.LoadDotEnv(dir); err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.MergeWithFlags(overridesFromFlags(cmd))
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overridesFromFlags collects only the flags the user actually set.
// Flags a command does not define are never Changed.
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	return config.Overrides{
		Extension:         changedString(cmd, "extension"),
		Pattern:           changedString(cmd, "pattern"),
		IgnoreCase:        changedBool(cmd, "ignore-case"),
		Digits:            changedInt(cmd, "digits"),
		ScratchDir:        changedString(cmd, "temp-dir"),
		MaxFilenameLength: changedInt(cmd, "max-filename-length"),
		BufferSize:        changedInt(cmd, "buffer-size"),
		BatchSize:         changedInt(cmd, "batch-size"),
		BatchTimeout:      changedDuration(cmd, "batch-timeout"),
		Workers:           changedInt(cmd, "workers"),
		MaxRetries:        changedInt(cmd, "max-retries"),
		LogLevel:          changedString(cmd, "log-level"),
		LogDir:            changedString(cmd, "log-dir"),
		MetricsAddr:       changedString(cmd, "metrics-addr"),
		HistoryDB:         changedString(cmd, "history-db"),
	}
}

func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func changedInt(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func changedBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func changedDuration(cmd *cobra.Command, name string) *time.Duration {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetDuration(name)
	return &v
}

// dirArg returns the optional directory argument.
func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
