// Package logger provides structured logging for the market layer. It is a
// thin wrapper around logrus so call sites carry a component field and a
// consistent WithField/WithError chaining API.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the behavior of a root logger.
type LoggingConfig struct {
	Level     string
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr" or a file path
	Component string
}

// Logger wraps a logrus entry so fields accumulate across With* calls.
type Logger struct {
	entry *logrus.Entry
}

// New builds a logger from configuration. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.TrimSpace(cfg.Output) {
	case "", "stdout":
		base.SetOutput(os.Stdout)
	case "stderr":
		base.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			base.SetOutput(os.Stdout)
			base.WithError(err).Warn("log file unavailable, falling back to stdout")
		} else {
			base.SetOutput(file)
		}
	}

	entry := logrus.NewEntry(base)
	if component := strings.TrimSpace(cfg.Component); component != "" {
		entry = entry.WithField("component", component)
	}
	return &Logger{entry: entry}
}

// NewDefault returns an info-level text logger tagged with the component.
func NewDefault(component string) *Logger {
	return New(LoggingConfig{Level: "info", Component: component})
}

// WithField returns a logger carrying an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithError returns a logger carrying the error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// SetOutput redirects the underlying logger output. Mainly used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l *Logger) Debug(args ...any)                 { l.entry.Debug(args...) }
func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(args ...any)                  { l.entry.Info(args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(args ...any)                  { l.entry.Warn(args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(args ...any)                 { l.entry.Error(args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
