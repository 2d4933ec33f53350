package server

import (
	swnet "github.com/Brownie44l1/socket-wrapper"
)

// Logger interface for structured logging. Fields are alternating key/value
// pairs. The method set matches the socket wrapper's logger, so the same value
// can be handed to both.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, fields ...any)
}

var _ swnet.Logger = Logger(nil)

// NewDefaultLogger logs Info and Error to stdout.
func NewDefaultLogger() Logger {
	return swnet.NewSimpleLogger(swnet.InfoLevel)
}

// NewDebugLogger also logs per-connection Debug lines.
func NewDebugLogger() Logger {
	return swnet.NewSimpleLogger(swnet.DebugLevel)
}

const maxLoggedValue = 100

// sanitizeValue keeps client-controlled strings (paths, methods) to a sane length in logs.
func sanitizeValue(s string) string {
	if len(s) > maxLoggedValue {
		return s[:maxLoggedValue] + "...[truncated]"
	}
	return s
}

// NullLogger discards all logs (for testing)
type NullLogger struct{}

func (NullLogger) Debug(msg string, fields ...any) {}
func (NullLogger) Info(msg string, fields ...any)  {}
func (NullLogger) Error(msg string, fields ...any) {}
