package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelError   = "ERROR"
	LevelWarning = "WARNING"
	LevelInfo    = "INFO"
	LevelDebug   = "DEBUG"
)

type Config struct {
	Level string `mapstructure:"level"`
}

// ParseLevel maps a config level name to a slog level. Unknown names are INFO.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case LevelError:
		return slog.LevelError
	case LevelWarning, "WARN":
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func IsDebug(logLevel string) bool {
	return strings.ToUpper(logLevel) == LevelDebug
}

func NewLogger(w io.Writer, logLevel string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs a text logger on stdout as the slog default.
func Init(logLevel string) {
	slog.SetDefault(NewLogger(os.Stdout, logLevel))
}
