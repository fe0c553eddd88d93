package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger logs pipeline activity to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when writing to a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a TTY that supports colors.
// NO_COLOR is honoured through color.NoColor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, colorLevel(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogRename logs a single rename outcome. Successes are INFO, failures WARN,
// orphans ERROR.
// Format: "[HH:MM:SS] [INFO] Renamed: photo.jpg -> 001.jpg"
func (cl *ConsoleLogger) LogRename(result models.RenameResult) {
	level := renameLevel(result)
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}

	message := formatRename(result)
	if cl.colorOutput {
		switch result.State {
		case models.StateCommitted:
			message = fmt.Sprintf("Renamed: %s -> %s", result.Item.Name, color.New(color.FgGreen).Sprint(result.NewName))
		case models.StateOrphaned:
			message = color.New(color.FgRed, color.Bold).Sprint(message)
		}
	}

	cl.logWithLevel(strings.ToUpper(level), message)
}

// LogStats logs the periodic statistics line at INFO level, and event
// counters at DEBUG level.
// Format: "[HH:MM:SS] [INFO] Stats - buffer: [=   ] 3/1000 (0%), in-flight: 2, processed: 10, ..."
func (cl *ConsoleLogger) LogStats(report models.StatsReport) {
	if cl.writer == nil {
		return
	}

	if cl.shouldLog("info") {
		cl.logWithLevel("INFO", cl.formatStats(report))
	}
	if cl.shouldLog("debug") && len(report.Intake) > 0 {
		cl.logWithLevel("DEBUG", "Events - "+formatIntake(report.Intake))
	}
}

func (cl *ConsoleLogger) formatStats(report models.StatsReport) string {
	bar := NewFillBar(report.Buffer.Depth, report.Buffer.Capacity, 10).Render()
	pool := report.Pool

	if !cl.colorOutput {
		return fmt.Sprintf("Stats - buffer: %s, in-flight: %d, processed: %d, succeeded: %d, failed: %d, batches: %d",
			bar, report.Buffer.InFlight, pool.Processed, pool.Succeeded, pool.Failed, pool.Batches)
	}

	label := color.New(color.FgCyan)
	failed := fmt.Sprintf("%d", pool.Failed)
	if pool.Failed > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}
	return fmt.Sprintf("%s - %s: %s, %s: %d, %s: %d, %s: %s, %s: %s, %s: %d",
		color.New(color.Bold).Sprint("Stats"),
		label.Sprint("buffer"), bar,
		label.Sprint("in-flight"), report.Buffer.InFlight,
		label.Sprint("processed"), pool.Processed,
		label.Sprint("succeeded"), color.New(color.FgGreen).Sprintf("%d", pool.Succeeded),
		label.Sprint("failed"), failed,
		label.Sprint("batches"), pool.Batches,
	)
}

// formatIntake renders event counters sorted by key.
func formatIntake(stats models.IntakeStats) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, stats[k]))
	}
	return strings.Join(parts, ", ")
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}
