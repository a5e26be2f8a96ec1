// Package logger provides structured logging for vmrange
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with vmrange-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	// Set global log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Pretty printing for development
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Create logger
	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "vmrange").
		Logger()

	// Add caller information if requested
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// VmLogger returns a logger scoped to allocator operations.
func (l *Logger) VmLogger(op string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "vm").
			Str("op", op).
			Logger(),
	}
}

// HttpLogger returns a logger for the observability HTTP surface.
func (l *Logger) HttpLogger(route string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "http").
			Str("route", route).
			Logger(),
	}
}

// LogAllocOperation logs a completed Alloc call with its fit parameters.
func (l *Logger) LogAllocOperation(size, align, vstart, vend uint64, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "vm").
		Str("op", "alloc").
		Uint64("size", size).
		Uint64("align", align).
		Uint64("vstart", vstart).
		Uint64("vend", vend).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Warn().
			Str("component", "vm").
			Str("op", "alloc").
			Uint64("size", size).
			Uint64("align", align).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("alloc operation completed")
}

// LogFreeOperation logs a completed Free/Insert call, noting whether the
// range was coalesced into an existing neighbor.
func (l *Logger) LogFreeOperation(start, end uint64, duration time.Duration, coalesced bool, err error) {
	event := l.zlog.Debug().
		Str("component", "vm").
		Str("op", "free").
		Uint64("start", start).
		Uint64("end", end).
		Dur("duration_ms", duration).
		Bool("coalesced", coalesced)

	if err != nil {
		event = l.zlog.Warn().
			Str("component", "vm").
			Str("op", "free").
			Uint64("start", start).
			Uint64("end", end).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("free operation completed")
}

// LogContractViolation logs a caller error that the allocator rejected
// without mutating the tree (duplicate start, overlap, bad alignment, ...).
func (l *Logger) LogContractViolation(op string, err error) {
	l.zlog.Warn().
		Str("component", "vm").
		Str("op", op).
		Str("event", "contract_violation").
		Err(err).
		Msg("allocator rejected the request")
}

// LogExhaustion logs an Alloc call that found no fitting free range.
func (l *Logger) LogExhaustion(size, align, vstart, vend uint64) {
	l.zlog.Warn().
		Str("component", "vm").
		Str("op", "alloc").
		Str("event", "exhaustion").
		Uint64("size", size).
		Uint64("align", align).
		Uint64("vstart", vstart).
		Uint64("vend", vend).
		Msg("no free range satisfies the request")
}

// LogInvariantFailure logs a recovered InvariantError before re-panicking
// or aborting, so the corruption is on record even when the process dies.
func (l *Logger) LogInvariantFailure(op, reason string) {
	l.zlog.Error().
		Str("component", "vm").
		Str("op", op).
		Str("event", "invariant_failure").
		Str("reason", reason).
		Msg("allocator invariant violated")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, vstart, vend uint64) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Uint64("vstart", vstart).
		Uint64("vend", vend).
		Msg("vmrange server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("vmrange server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("vmrange server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
