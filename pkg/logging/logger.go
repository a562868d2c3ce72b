// Package logging configures zerolog for wellness-sync.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names attached as the "component" field.
const (
	ComponentClient   = "wellness-client"
	ComponentAuth     = "auth-guard"
	ComponentResource = "resource"
	ComponentCLI      = "cli"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level; unknown levels mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForResource returns the logger of one resource.
func ForResource(name string) zerolog.Logger {
	return log.With().Str("component", ComponentResource).Str("resource", name).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow and internal state
//   - Cache hit/miss, cache key, entry age
//   - Conditional requests, 304 reuse
//   - Stale responses dropped (seq)
//   - Poll start/stop
//
// Info: normal operation events
//   - Request succeeded after retry
//   - Batch fetch progress
//   - Login, logout, server startup/shutdown
//
// Warn: conditions that don't prevent operation
//   - Retry exhausted, fetch failed (state carries the error)
//   - Poll failure with backoff
//   - Cache errors (fallback to network)
//   - Session unauthorized, redirect to login
//
// Error: conditions requiring attention
//   - Transport failures
//   - Configuration errors
//
// Context Fields:
//   - endpoint: backend path
//   - status: HTTP status code
//   - error_class: client, auth, server, rate_limit, network, cancelled
//   - attempt, backoff: retry loop position and delay
//   - resource, seq, foreground: resource name and request ticket
//   - cache_key: rendered cache key
