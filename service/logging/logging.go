package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultRingSize is the number of entries retained when Options.RingSize is unset.
const DefaultRingSize = 500

// Options configure New.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// File, when set, also writes JSON logs to a rotated file.
	File string
	// RingSize bounds the diagnostics ring.
	RingSize int
}

// Logger bundles the configured logger with its diagnostics ring.
type Logger struct {
	*slog.Logger
	Ring *Ring
	file *lumberjack.Logger
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON logger that redacts sensitive attributes, optionally tees
// to a rotated file, and retains recent entries in a Ring.
func New(opts Options) *Logger {
	level := ParseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
	}

	size := opts.RingSize
	if size <= 0 {
		size = DefaultRingSize
	}
	ring := NewRing(size)

	jsonHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: RedactAttr,
	})

	return &Logger{
		Logger: slog.New(NewRingHandler(ring, jsonHandler, level)),
		Ring:   ring,
		file:   file,
	}
}
