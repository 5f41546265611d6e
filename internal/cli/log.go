package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// logLevel picks the level from the config value; --verbose forces debug.
func logLevel(configured string, verbose bool) (log.Level, error) {
	if verbose {
		return log.DebugLevel, nil
	}
	if configured == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(configured)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	configKey
)

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns log.Default() when no logger is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
