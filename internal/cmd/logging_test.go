package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerConsoleOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	var buf bytes.Buffer

	log, closeLog, err := setupLogger(&buf, cfg, t.TempDir())
	require.NoError(t, err)
	defer closeLog()

	_, ok := log.(*logger.ConsoleLogger)
	assert.True(t, ok, "expected a plain console logger, got %T", log)

	log.LogInfo("hello")
	assert.Contains(t, buf.String(), "[INFO] hello")
}

func TestSetupLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogDir = "logs"
	var buf bytes.Buffer

	log, closeLog, err := setupLogger(&buf, cfg, dir)
	require.NoError(t, err)

	multi, ok := log.(multiLogger)
	require.True(t, ok, "expected a multiLogger, got %T", log)
	require.Len(t, multi, 2)
	fileLogger := multi[1].(*logger.FileLogger)

	log.LogWarn("disk nearly full")
	log.LogRename(models.RenameResult{
		Item:    models.PendingItem{Name: "photo.jpg"},
		State:   models.StateCommitted,
		NewName: "001.jpg",
	})
	closeLog()

	assert.Contains(t, buf.String(), "disk nearly full")
	assert.Contains(t, buf.String(), "photo.jpg -> 001.jpg")

	data, err := os.ReadFile(fileLogger.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk nearly full")
	assert.Contains(t, string(data), "photo.jpg -> 001.jpg")
	assert.DirExists(t, filepath.Join(dir, "logs"))
}
