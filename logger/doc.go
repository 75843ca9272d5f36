// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap, providing structured, high-performance logging
// throughout the application.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reqLog := logger.ForRequest(base, requestID)
//	reqLog.Info("syntax check started")
package logger
