// Package logger provides logging implementations for seqwatch.
//
// Both loggers filter by level (trace, debug, info, warn, error), prefix every
// line with an [HH:MM:SS] timestamp and are safe for concurrent use by the
// watcher, workers and reporter.
package logger

import (
	"fmt"
	"strings"

	"github.com/harrison/seqwatch/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the logging surface consumed by the pipeline packages.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRename(result models.RenameResult)
	LogStats(report models.StatsReport)
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// renameLevel picks the level a rename outcome is reported at. Orphans are
// the one condition the pipeline cannot fix on its own.
func renameLevel(result models.RenameResult) string {
	switch result.State {
	case models.StateCommitted:
		return "info"
	case models.StateOrphaned:
		return "error"
	default:
		return "warn"
	}
}

// formatRename renders a rename outcome without color.
func formatRename(result models.RenameResult) string {
	switch result.State {
	case models.StateCommitted:
		return fmt.Sprintf("Renamed: %s -> %s", result.Item.Name, result.NewName)
	case models.StateRestored:
		return fmt.Sprintf("Rename failed, restored %s: %v", result.Item.Name, result.Err)
	case models.StateOrphaned:
		return fmt.Sprintf("ORPHANED %s at %s (manual cleanup required): %v", result.Item.Name, result.OrphanPath, result.Err)
	default:
		return fmt.Sprintf("Rename failed for %s: %v", result.Item.Name, result.Err)
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string)              {}
func (n *NoOpLogger) LogDebug(message string)              {}
func (n *NoOpLogger) LogInfo(message string)               {}
func (n *NoOpLogger) LogWarn(message string)               {}
func (n *NoOpLogger) LogError(message string)              {}
func (n *NoOpLogger) LogRename(result models.RenameResult) {}
func (n *NoOpLogger) LogStats(report models.StatsReport)   {}

var (
	_ Logger = (*NoOpLogger)(nil)
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
)
