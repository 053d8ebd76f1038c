// Package logging provides structured stderr-only logging with a bounded
// in-memory history, mirroring the teacher's file+console wrapper around
// zerolog but pinned to stderr: stdout carries the JSON-RPC transport and
// must never receive a log line.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logging level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is a single log entry kept in the in-memory history ring.
type Entry struct {
	Timestamp string
	Level     string
	Component string
	Message   string
	Data      string
}

// Config holds logger configuration.
type Config struct {
	LogDir     string // optional; empty disables the file writer
	Level      Level
	MaxHistory int
}

// DefaultConfig returns sensible defaults: no file writer, info level,
// 1000-entry history.
func DefaultConfig() *Config {
	return &Config{
		LogDir:     "",
		Level:      LevelInfo,
		MaxHistory: 1000,
	}
}

// Logger wraps zerolog with a stderr console writer, an optional file
// writer, and an in-memory history ring.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	mu      sync.RWMutex
	history []Entry
	maxHist int
}

// New creates a Logger. The console writer always targets stderr.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	}

	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		name := fmt.Sprintf("voicesmith_%s.log", time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	level := zerolog.InfoLevel
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	zlog := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Str("app", "voicesmith-mcp").
		Logger()

	maxHist := cfg.MaxHistory
	if maxHist <= 0 {
		maxHist = 1000
	}

	return &Logger{
		zlog:    zlog,
		file:    file,
		history: make([]Entry, 0, maxHist),
		maxHist: maxHist,
	}, nil
}

func formatData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	s := ""
	for k, v := range data {
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, v)
	}
	return s
}

func (l *Logger) record(level, component, msg string, data map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, Entry{
		Timestamp: time.Now().Format("15:04:05.000"),
		Level:     level,
		Component: component,
		Message:   msg,
		Data:      formatData(data),
	})
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(component, msg string, data map[string]interface{}) {
	e := l.zlog.Debug().Str("component", component)
	for k, v := range data {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
	l.record("debug", component, msg, data)
}

// Info logs an info message.
func (l *Logger) Info(component, msg string, data map[string]interface{}) {
	e := l.zlog.Info().Str("component", component)
	for k, v := range data {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
	l.record("info", component, msg, data)
}

// Warn logs a warning message.
func (l *Logger) Warn(component, msg string, data map[string]interface{}) {
	e := l.zlog.Warn().Str("component", component)
	for k, v := range data {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
	l.record("warn", component, msg, data)
}

// Error logs an error message.
func (l *Logger) Error(component, msg string, err error, data map[string]interface{}) {
	e := l.zlog.Error().Str("component", component)
	if err != nil {
		e = e.Err(err)
	}
	e.Msg(msg)
	l.record("error", component, msg, data)
}

// History returns the most recent entries, newest last.
func (l *Logger) History(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	start := len(l.history) - limit
	out := make([]Entry, limit)
	copy(out, l.history[start:])
	return out
}

// Component returns a zerolog.Logger scoped to the given component, for
// code that wants to use zerolog directly.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Close closes the file writer, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
