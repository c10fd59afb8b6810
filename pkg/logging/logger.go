// Package logging configures structured logging for ingestion runs using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every page request and extraction decision.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run start/finish and persisted files.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries and malformed pages.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed runs only.
	LevelError LogLevel = "error"
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
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a textual level to a zerolog.Level.
// Unknown values fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
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

// WithRun returns a child logger tagged with the run id and endpoint of one ingestion run.
func WithRun(logger zerolog.Logger, runID, endpoint string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Str("endpoint", endpoint).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per HTTP attempt and per page
//   - request URL and query, page number, records on page
//   - cache hits, pacing waits
//
// Info: run lifecycle
//   - run started (strategy, endpoint)
//   - fetch complete (pages, records, duration)
//   - files written, uploads
//
// Warn: recoverable conditions
//   - retry attempts and backoff
//   - response body that is not valid JSON (treated as an empty page)
//   - cache errors (request falls through to the API)
//
// Error: the run failed
//   - HTTP or transport error after retries
//   - persistence failure
//
// Context Fields:
//   - run_id, endpoint, strategy
//   - page, page_records, total_records
//   - status, attempt, backoff, url
//   - path, files
