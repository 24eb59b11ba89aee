package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MEKXH/intentpilot/internal/config"
)

var (
	loggerMu      sync.Mutex
	activeLogFile *os.File
)

// configureLogger installs the default slog handler. Interactive sessions
// keep stderr clean: without a configured file their logs go to
// <workspace>/logs/intentpilot.log.
func configureLogger(cfg *config.Config, overrideLevel string, interactive bool) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	logFilePath := strings.TrimSpace(cfg.Log.File)
	if logFilePath == "" && interactive {
		logFilePath = filepath.Join(cfg.WorkspacePath(), "logs", "intentpilot.log")
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()

	if activeLogFile != nil && activeLogFile.Name() != logFilePath {
		_ = activeLogFile.Close()
		activeLogFile = nil
	}

	writer := io.Writer(os.Stderr)
	if logFilePath != "" {
		if activeLogFile == nil {
			f, err := openLogFile(logFilePath)
			if err != nil {
				return err
			}
			activeLogFile = f
		}
		writer = activeLogFile
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func parseLogLevel(configLevel, override string) (slog.Level, error) {
	level := strings.TrimSpace(configLevel)
	if strings.TrimSpace(override) != "" {
		level = override
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
