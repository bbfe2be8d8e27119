package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	format       = "text"
	output       io.Writer = os.Stdout
	logger                 = newLogger()
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// newLogger builds the backing zerolog logger. Callers hold mu or run during init.
func newLogger() zerolog.Logger {
	var w io.Writer = output
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime, NoColor: true}
	}
	return zerolog.New(w).Level(currentLevel.zerolog()).With().Timestamp().Logger()
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
	logger = newLogger()
}

// SetFormat selects "text" (human readable console output) or "json".
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()

	if strings.ToLower(f) == "json" {
		format = "json"
	} else {
		format = "text"
	}
	logger = newLogger()
}

func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	logger = newLogger()
}

// Configure applies level, format and output in one step. Output accepts
// "stdout", "stderr" or a file path, which is opened for appending.
func Configure(level, logFormat, out string) error {
	var w io.Writer
	switch strings.ToLower(out) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log output %q: %w", out, err)
		}
		w = f
	}

	SetOutput(w)
	SetFormat(logFormat)
	SetLevel(level)
	return nil
}

func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// With returns a child logger tagged with the given component name.
func With(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Str("component", component).Logger()
}

// StdLogger adapts the global logger to a *log.Logger for libraries that
// expect one (go-fuse debug output, net/http error logs).
func StdLogger(component string) *stdlog.Logger {
	l := With(component)
	return stdlog.New(l, "", 0)
}

func log(level Level, f string, v ...any) {
	mu.RLock()
	l := logger
	enabled := level >= currentLevel
	mu.RUnlock()

	if !enabled {
		return
	}

	l.WithLevel(level.zerolog()).Msg(fmt.Sprintf(f, v...))
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
