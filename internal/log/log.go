package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   *slog.Logger
	out      io.Writer = os.Stderr
	levelVar slog.LevelVar
)

// initLogger builds the process-wide logger lazily so that SetOutput and
// SetLevel can be called before the first log line.
func initLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: &levelVar}))
	}
	return logger
}

// SetOutput redirects all subsequent log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: &levelVar}))
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelWarn:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	initLogger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	initLogger().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	initLogger().Error(msg, extended...)
}
