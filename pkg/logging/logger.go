// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the Deckhand console.
//
// The console is an interactive operator tool, so the logging contract
// differs slightly from a service logger:
//
//   - Console output is split by severity: Debug/Info go to stdout,
//     Warn/Error go to stderr. The operator reads the menu on stdout and
//     sees failures on stderr, which also keeps piped output clean.
//   - File output is an append-only JSON log under a directory created
//     with restrictive permissions (0700 dir, 0600 file). The console
//     runs privileged operations; the log must not be world readable.
//   - No rotation and no size bound. Sessions are short lived.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.deckhand/logs",
//	    Service: "deckhand",
//	})
//	defer logger.Close()
//	logger.Info("engine present", "binary", "docker")
//
// # Export Extension
//
// The LogExporter interface receives every entry at or above the
// configured level. Export is synchronous: the console is strictly
// sequential and per-operation log assertions in tests rely on entries
// being visible as soon as the log call returns.
//
// # Security Considerations
//
// This package does NOT redact sensitive data. Callers must never log
// credentials; log presence, not values:
//
//	logger.Info("credential acquired", "source", "env")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable or degraded situations, such as an
	// unsupported distribution or a missing identification file.
	LevelWarn

	// LevelError is for failed operations. The console continues.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
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

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior. The zero value logs Info and above
// to the console in text format with no file sink.
type Config struct {
	// Level is the minimum level written to any destination.
	// Default: LevelInfo.
	Level Level

	// LogDir enables the file sink. When set, every entry is appended to
	// "{Service}_{YYYY-MM-DD}.log" in JSON format inside this directory.
	// Supports ~ expansion. The directory is created 0700, the file 0600.
	// Default: "" (file sink disabled).
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches console output to JSON. File output is always JSON.
	JSON bool

	// Quiet disables console output entirely. File and exporter sinks
	// still receive entries. Used by tests.
	Quiet bool

	// Exporter optionally receives every entry synchronously.
	// Default: nil.
	Exporter LogExporter

	// Stdout and Stderr override the console writers. Nil means
	// os.Stdout / os.Stderr. Used by tests.
	Stdout io.Writer
	Stderr io.Writer
}

// =============================================================================
// Exporter Extension
// =============================================================================

// LogExporter receives structured entries for delivery to an external
// destination. Export is called synchronously from the log call; keep
// implementations fast or buffer internally.
type LogExporter interface {
	// Export delivers one entry. Errors are dropped by the logger.
	Export(ctx context.Context, entry LogEntry) error

	// Flush sends anything buffered. Called from Logger.Close.
	Flush(ctx context.Context) error

	// Close releases resources. Called after Flush.
	Close() error
}

// LogEntry is the structured form of a single log line.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger writes leveled, timestamped entries to the console, an optional
// append-only file, and an optional exporter. Safe for concurrent use,
// though the console itself is single threaded.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter

	// attrs are the With-bound key-value pairs, kept alongside the slog
	// handler so exported entries carry them too.
	attrs []any

	mu sync.Mutex
}

// New creates a Logger from config. Call Close when done to flush the
// exporter and close the file sink.
//
// File sink setup failures are deliberately non-fatal: an operator
// console must stay usable even when the log directory cannot be
// created, so the error is reported on stderr and console logging
// continues.
func New(config Config) *Logger {
	stdout := config.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		handlers = append(handlers, newSplitConsoleHandler(stdout, stderr, config.JSON, opts))
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0700); err != nil {
			fmt.Fprintf(stderr, "logging: cannot create log directory %s: %v\n", logDir, err)
		} else {
			service := config.Service
			if service == "" {
				service = "deckhand"
			}
			filename := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)
			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				fmt.Fprintf(stderr, "logging: cannot open log file %s: %v\n", logPath, err)
			} else {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level console-only logger.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "deckhand"})
}

// Debug logs at Debug level with slog-style key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child Logger carrying additional attributes on every
// entry, including exported ones. The file handle and exporter are
// shared with the parent.
func (l *Logger) With(args ...any) *Logger {
	bound := make([]any, 0, len(l.attrs)+len(args))
	bound = append(bound, l.attrs...)
	bound = append(bound, args...)
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
		attrs:    bound,
	}
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes the exporter and closes the file sink. Returns the first
// error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		merged := make([]any, 0, len(l.attrs)+len(args))
		merged = append(merged, l.attrs...)
		merged = append(merged, args...)
		_ = l.exporter.Export(ctx, LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(merged),
		})
		cancel()
	}
}

// =============================================================================
// Console Handler (Internal)
// =============================================================================

// newSplitConsoleHandler routes Debug/Info records to stdout and
// Warn/Error records to stderr, in text or JSON format.
func newSplitConsoleHandler(stdout, stderr io.Writer, jsonFormat bool, opts *slog.HandlerOptions) slog.Handler {
	build := func(w io.Writer) slog.Handler {
		if jsonFormat {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}
	return &splitHandler{
		low:  build(stdout),
		high: build(stderr),
	}
}

// splitHandler delegates to one of two handlers depending on severity.
type splitHandler struct {
	low  slog.Handler // below Warn
	high slog.Handler // Warn and above
}

func (h *splitHandler) pick(level slog.Level) slog.Handler {
	if level >= slog.LevelWarn {
		return h.high
	}
	return h.low
}

func (h *splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.pick(level).Enabled(ctx, level)
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.pick(r.Level).Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{low: h.low.WithAttrs(attrs), high: h.high.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{low: h.low.WithGroup(name), high: h.high.WithGroup(name)}
}

// multiHandler fans out records to multiple handlers (console + file).
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// argsToMap converts slog-style key-value args to a map for LogEntry.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards all entries.
type NopExporter struct{}

// Export discards the entry.
func (e *NopExporter) Export(ctx context.Context, entry LogEntry) error { return nil }

// Flush is a no-op.
func (e *NopExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *NopExporter) Close() error { return nil }

var _ LogExporter = (*NopExporter)(nil)

// BufferedExporter collects entries in memory. Tests use it to assert on
// exactly which entries a component emitted:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Quiet: true, Exporter: exporter})
//	...
//	warns := exporter.CountLevel(logging.LevelWarn)
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 64)}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op.
func (e *BufferedExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of all collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]LogEntry, len(e.entries))
	copy(result, e.entries)
	return result
}

// CountLevel returns how many entries were recorded at the given level.
func (e *BufferedExporter) CountLevel(level Level) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, entry := range e.entries {
		if entry.Level == level {
			n++
		}
	}
	return n
}

var _ LogExporter = (*BufferedExporter)(nil)
