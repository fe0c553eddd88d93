package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/seqwatch/internal/models"
)

// FileLogger writes timestamped per-run log files into a log directory and
// maintains a latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in logDir with the given level.
// It creates the log directory if it doesn't exist, opens
// run-YYYYMMDD-HHMMSS.log and points latest.log at it.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== seqwatch run log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogRename records a rename outcome, including the elapsed time.
func (fl *FileLogger) LogRename(result models.RenameResult) {
	level := renameLevel(result)
	if !fl.shouldLog(level) {
		return
	}
	fl.logWithLevel(strings.ToUpper(level), fmt.Sprintf("%s (%s)", formatRename(result), result.Duration.Round(time.Microsecond)))
}

// LogStats records the periodic statistics line.
func (fl *FileLogger) LogStats(report models.StatsReport) {
	pool := report.Pool
	fl.logWithLevel("INFO", fmt.Sprintf(
		"Stats - buffer: %d/%d, in-flight: %d, processed: %d, succeeded: %d, failed: %d, batches: %d, restored: %d, orphaned: %d",
		report.Buffer.Depth, report.Buffer.Capacity, report.Buffer.InFlight,
		pool.Processed, pool.Succeeded, pool.Failed, pool.Batches, pool.Restored, pool.Orphaned,
	))
	if len(report.Intake) > 0 {
		fl.logWithLevel("DEBUG", "Events - "+formatIntake(report.Intake))
	}
	if len(report.Buffer.Failures) > 0 {
		fl.logWithLevel("DEBUG", fmt.Sprintf("Failure ledger - %v", report.Buffer.Failures))
	}
}

// writeRunLog writes a message to the run log file (thread-safe).
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
	}
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// Close writes a footer and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.writeRunLog(fmt.Sprintf("\nStopped at: %s\n", time.Now().Format(time.RFC3339)))

	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		err := fl.runLog.Close()
		fl.runLog = nil
		return err
	}
	return nil
}
