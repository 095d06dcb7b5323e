// Package logger provides structured logging for the voice session engine.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Session lifecycle logging (connect, disconnect, reconnect)
//   - Audio pipeline logging (capture, playback, resampling)
//   - Tool dispatch logging
//   - Automatic credential redaction
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

// DefaultLogger is the global structured logger instance.
// It is safe for concurrent use and initialized with slog.LevelInfo by default.
var DefaultLogger *slog.Logger

func init() {
	// Check LOG_LEVEL environment variable
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
// Debug messages are only output when the log level is set to LevelDebug or lower.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// SessionConnected logs a successful upstream connection.
func SessionConnected(sessionID, model, voice string, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"session_id", sessionID,
		"model", model,
		"voice", voice,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("session connected", allAttrs...)
}

// SessionDisconnected logs the end of an upstream connection.
// Intentional indicates whether the local side initiated the close.
func SessionDisconnected(sessionID string, intentional bool, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"session_id", sessionID,
		"intentional", intentional,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("session disconnected", allAttrs...)
}

// Reconnecting logs a reconnection attempt after an unintentional close.
func Reconnecting(attempt, maxAttempts int, delay time.Duration, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"attempt", attempt,
		"max_attempts", maxAttempts,
		"delay", delay,
	)
	allAttrs = append(allAttrs, attrs...)
	Warn("reconnecting to upstream", allAttrs...)
}

// ToolDispatch logs a tool call being handed to an executor.
func ToolDispatch(toolName, callID string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"tool", toolName,
		"call_id", callID,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("tool dispatch", allAttrs...)
}

// ToolOutcome logs the outcome of a tool execution.
func ToolOutcome(toolName, callID string, duration time.Duration, err error, attrs ...any) {
	allAttrs := make([]any, 0, 8+len(attrs))
	allAttrs = append(allAttrs,
		"tool", toolName,
		"call_id", callID,
		"duration", duration,
	)
	allAttrs = append(allAttrs, attrs...)
	if err != nil {
		allAttrs = append(allAttrs, "error", err)
		Error("tool dispatch failed", allAttrs...)
		return
	}
	Info("tool dispatch completed", allAttrs...)
}

// ProtocolDrop logs an inbound message that could not be handled.
// Malformed upstream messages are dropped, never fatal.
func ProtocolDrop(eventType string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "event_type", eventType, "error", err)
	allAttrs = append(allAttrs, attrs...)
	Warn("dropping malformed upstream message", allAttrs...)
}

var (
	// credentialPatterns contains compiled regular expressions for detecting
	// sensitive data in logged payloads: ephemeral session tokens and bearer headers.
	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`ek_[a-zA-Z0-9]{16,}`),      // ephemeral session credentials
		regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),      // upstream API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), // bearer tokens
	}
)

// RedactCredentials removes ephemeral credentials and bearer tokens from strings.
// It replaces matched patterns with a redacted form that preserves the first few
// characters for debugging while hiding the sensitive portion.
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactCredentials(input string) string {
	result := input

	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}
