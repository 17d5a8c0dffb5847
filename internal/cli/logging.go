package cli

import (
	"io"
	"log/slog"
	"os"
)

// NewLoggers creates default loggers with JSON output on stderr.
func NewLoggers(level slog.Level) (*slog.Logger, *slog.Logger) {
	return NewLoggersTo(os.Stderr, level)
}

// NewLoggersTo creates the command loggers writing JSON to w.
// Logs never go to stdout so command output stays clean for piping.
func NewLoggersTo(w io.Writer, level slog.Level) (*slog.Logger, *slog.Logger) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: a.Value,
				}
			}
			return a
		},
	})

	stdout := slog.New(handler)
	stderr := slog.New(handler)

	return stdout, stderr
}

// ParseLogLevelOrDefault parses a log level string or returns a default level.
func ParseLogLevelOrDefault(levelStr string) slog.Level {
	switch levelStr {
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
