package cmd

import (
	"fmt"
	"io"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
)

// multiLogger fans every call out to several loggers.
type multiLogger []logger.Logger

func (m multiLogger) LogTrace(message string) {
	for _, l := range m {
		l.LogTrace(message)
	}
}

func (m multiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m multiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m multiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m multiLogger) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

func (m multiLogger) LogRename(result models.RenameResult) {
	for _, l := range m {
		l.LogRename(result)
	}
}

func (m multiLogger) LogStats(report models.StatsReport) {
	for _, l := range m {
		l.LogStats(report)
	}
}

// setupLogger returns the console logger, plus a file logger when log_dir is
// set. The returned close func flushes and closes the file logger.
func setupLogger(w io.Writer, cfg *config.Config, dir string) (logger.Logger, func(), error) {
	console := logger.NewConsoleLogger(w, cfg.LogLevel)
	if cfg.LogDir == "" {
		return console, func() {}, nil
	}

	fileLogger, err := logger.NewFileLogger(config.ResolvePath(dir, cfg.LogDir), cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	console.LogDebug(fmt.Sprintf("Logging to %s", fileLogger.RunFile()))

	return multiLogger{console, fileLogger}, func() { fileLogger.Close() }, nil
}
