// Package logging builds the charmbracelet/log logger used across tada.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Options holds configuration for a logger.
type Options struct {
	Level  string
	Prefix string
}

// New creates a text logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "tada"
	}
	return log.NewWithOptions(w, log.Options{
		Level:     level,
		Formatter: log.TextFormatter,
		Prefix:    prefix,
	}), nil
}

// FileLogger is a logger bound to an append-only file.
type FileLogger struct {
	*log.Logger
	file *os.File
}

// OpenFile creates the parent directory and appends to path. The TUI logs
// here so output does not tear the alternate screen.
func OpenFile(path string, opts Options) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l, err := New(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.SetReportTimestamp(true)
	return &FileLogger{Logger: l, file: f}, nil
}

// Close closes the log file.
func (f *FileLogger) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	return f.file.Close()
}
