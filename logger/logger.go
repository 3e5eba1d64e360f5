// Package logger is a level-filtered line sink, the Go shape of
// original_source's Logger.hpp (LOG_DEBUG/LOG_INFO/LOG_WARNING/LOG_ERROR
// macros) and of indigo-web/indigo's Printf-based Logger interface used by
// its logging middleware.
package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warning", "warn":
		return Warning
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is the server's log sink: startup and shutdown messages, accept
// errors, recovered connection panics and registration failures, and slow
// requests. The reactor itself does not log, and bind/listen failures are
// returned to main, which prints them to stderr. Never touch it from a
// signal handler.
type Logger struct {
	min Level
	out *log.Logger
}

// New builds a Logger writing to w, filtering anything below min.
func New(w io.Writer, min Level) *Logger {
	return &Logger{min: min, out: log.New(w, "", log.LstdFlags)}
}

// Open opens (creating/appending) the file at path, or falls back to
// stderr when path is empty — the Go analogue of original_source's
// log_file config key.
func Open(path string, min Level) (*Logger, error) {
	if path == "" {
		return New(os.Stderr, min), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return New(f, min), nil
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}

	l.out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Debug(format string, args ...any)   { l.log(Debug, format, args...) }
func (l *Logger) Info(format string, args ...any)    { l.log(Info, format, args...) }
func (l *Logger) Warning(format string, args ...any) { l.log(Warning, format, args...) }
func (l *Logger) Error(format string, args ...any)   { l.log(Error, format, args...) }

// Printf satisfies the Logger interface indigo-web/indigo's request-logging
// middleware expects, logging at Info.
func (l *Logger) Printf(format string, args ...any) { l.Info(format, args...) }
