// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap. The service logs to the configured zap outputs; the
// sandboxed runner logs to an explicit writer (its stderr).
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("Application started")
//	log.Error("An error occurred", zap.Error(err))
package logger
