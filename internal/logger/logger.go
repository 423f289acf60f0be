// Package logger provides leveled logging in text or JSON lines.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	fatalLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	fatalLevel: "FATAL",
}

var slogLevels = map[Level]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
	fatalLevel: slog.LevelError + 4,
}

// ParseLevel maps a config string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging. Text lines go through the std log
// package; JSON lines through a slog JSON handler.
type Logger struct {
	level  atomic.Int32
	format string
	text   *log.Logger
	json   *slog.Logger
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(newLogger(InfoLevel, "text", os.Stderr))
}

func newLogger(level Level, format string, out io.Writer) *Logger {
	l := &Logger{format: strings.ToLower(format)}
	l.level.Store(int32(level))
	if l.format == "json" {
		l.json = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: lowerLevel,
		}))
		return l
	}
	l.format = "text"
	l.text = log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return l
}

// lowerLevel renders levels as "debug", "info", "warn", "error" and "fatal".
func lowerLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lv, ok := a.Value.Any().(slog.Level); ok {
		for k, v := range slogLevels {
			if v == lv {
				return slog.String(slog.LevelKey, strings.ToLower(levelNames[k]))
			}
		}
	}
	return a
}

// Init replaces the default logger with the given level and format ("text" or "json").
func Init(level, format string) {
	defaultLogger.Store(newLogger(ParseLevel(level), format, os.Stderr))
}

// SetOutput redirects the default logger, keeping its level and format.
func SetOutput(w io.Writer) {
	cur := defaultLogger.Load()
	defaultLogger.Store(newLogger(Level(cur.level.Load()), cur.format, w))
}

// SetLevel changes the minimum level of the default logger.
func SetLevel(level Level) {
	defaultLogger.Load().level.Store(int32(level))
}

func (l *Logger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *Logger) output(depth int, level Level, msg string) {
	if l.json != nil {
		l.json.Log(context.Background(), slogLevels[level], msg)
		return
	}
	_ = l.text.Output(depth, "["+levelNames[level]+"] "+msg)
}

func logf(level Level, format string, args ...interface{}) {
	l := defaultLogger.Load()
	if !l.enabled(level) {
		return
	}
	l.output(4, level, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) { logf(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { logf(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { logf(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { logf(ErrorLevel, format, args...) }

// Fatal logs regardless of level and exits the process.
func Fatal(format string, args ...interface{}) {
	defaultLogger.Load().output(3, fatalLevel, fmt.Sprintf(format, args...))
	os.Exit(1)
}
