// Package logger provides leveled logging with printf-style helpers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides leveled logging.
type Logger struct {
	level  Level
	logger *slog.Logger
}

var defaultLogger *Logger

// Init initializes the default logger writing to stderr.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter initializes the default logger with an explicit destination.
// format "json" emits one JSON object per line; anything else emits text
// with the caller's source location.
func InitWriter(w io.Writer, level string, format string) {
	l := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: l.slogLevel()}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		opts.AddSource = true
		h = slog.NewTextHandler(w, opts)
	}

	defaultLogger = &Logger{level: l, logger: slog.New(h)}
}

func output(l Level, format string, args []interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, output, and the exported helper
	r := slog.NewRecord(time.Now(), l.slogLevel(), fmt.Sprintf(format, args...), pcs[0])
	_ = defaultLogger.logger.Handler().Handle(context.Background(), r)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args)
}

func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		var pcs [1]uintptr
		runtime.Callers(2, pcs[:])
		r := slog.NewRecord(time.Now(), slog.LevelError, "[FATAL] "+fmt.Sprintf(format, args...), pcs[0])
		_ = defaultLogger.logger.Handler().Handle(context.Background(), r)
	}
	os.Exit(1)
}
