package utils

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide logger. The terminal belongs to the UI,
// so logs go to a file; when the file cannot be opened the app keeps running
// with a no-op logger rather than scribbling over the screen.
func NewLogger(path string) *zap.Logger {
	if path == "" {
		path = DefaultConfig().Log.File
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zap.NewNop()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
