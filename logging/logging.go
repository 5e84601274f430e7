// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and outputs.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	File   string // rotated file output in addition to stdout; empty disables
}

// New builds a logger writing to stdout and, optionally, a rotated file.
func New(opts Options) *slog.Logger {
	return slog.New(newHandler(opts, os.Stdout))
}

func newHandler(opts Options, stdout io.Writer) slog.Handler {
	w := stdout
	if opts.File != "" {
		w = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

// ParseLevel maps a level name to slog; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
