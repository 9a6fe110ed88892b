package observability

import (
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// active returns the server logger when running as a service, the CLI logger
// otherwise, and nil when neither has been initialized (unit tests).
func active() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// Debug logs through the active logger.
func Debug(msg string, fields ...zap.Field) {
	if logger := active(); logger != nil {
		logger.Debug(msg, fields...)
	}
}

// Info logs through the active logger.
func Info(msg string, fields ...zap.Field) {
	if logger := active(); logger != nil {
		logger.Info(msg, fields...)
	}
}

// Warn logs through the active logger.
func Warn(msg string, fields ...zap.Field) {
	if logger := active(); logger != nil {
		logger.Warn(msg, fields...)
	}
}

// Error logs through the active logger.
func Error(msg string, fields ...zap.Field) {
	if logger := active(); logger != nil {
		logger.Error(msg, fields...)
	}
}
