package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file.
const (
	maxFileSizeMB  = 5
	maxFileBackups = 3
	maxFileAgeDays = 30
)

// Options configures New.
type Options struct {
	// Writer receives the log output. Nil means os.Stderr.
	Writer io.Writer
	// Verbose selects Debug level.
	Verbose bool
	// JSON selects JSON output instead of text.
	JSON bool
	// File, when set, also writes every record to a size-rotated file.
	File string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a secure logger from opts. The returned io.Closer releases
// the log file and must be closed when the program exits.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
			MaxAge:     maxFileAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(w, rotator)
		closer = rotator
	}

	if opts.JSON {
		return NewSecureJSONLogger(w, opts.Verbose), closer, nil
	}
	return NewSecureLogger(w, opts.Verbose), closer, nil
}
