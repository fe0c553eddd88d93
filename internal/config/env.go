package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "SEQWATCH_"

// LoadDotEnv loads dir/.env into the process environment. Variables already
// set are not overridden, and a missing file is not an error.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration values from SEQWATCH_* environment
// variables, e.g. SEQWATCH_WORKERS=5 or SEQWATCH_BATCH_TIMEOUT=1s.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"EXTENSION":         &c.Extension,
		"PATTERN":           &c.Pattern,
		"SCRATCH_DIR":       &c.ScratchDir,
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_DIR":           &c.LogDir,
		"METRICS_ADDR":      &c.MetricsAddr,
		"ORPHAN_SWEEP_CRON": &c.OrphanSweepCron,
		"HISTORY_DB":        &c.History.DBPath,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DIGITS":              &c.Digits,
		"MAX_FILENAME_LENGTH": &c.MaxFilenameLength,
		"BUFFER_SIZE":         &c.BufferSize,
		"BATCH_SIZE":          &c.BatchSize,
		"WORKERS":             &c.Workers,
		"MAX_RETRIES":         &c.MaxRetries,
		"PROBE_ATTEMPTS":      &c.ProbeAttempts,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"IGNORE_CASE":      &c.IgnoreCase,
		"RECOVER_ON_EXIT":  &c.RecoverOnExit,
		"REQUEUE_RESTORED": &c.RequeueRestored,
		"HISTORY_ENABLED":  &c.History.Enabled,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = b
	}

	durations := map[string]*time.Duration{
		"BATCH_TIMEOUT":      &c.BatchTimeout,
		"PROBE_DELAY":        &c.ProbeDelay,
		"EVENT_DEDUP_WINDOW": &c.EventDedupWindow,
		"STATS_INTERVAL":     &c.StatsInterval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = d
	}

	return nil
}
