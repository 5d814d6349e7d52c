// Package log provides structured trace capture for keeper clients.
//
// This package defines the Logger interface and Event types for recording a
// client's connection lifecycle: state transitions, every notification the
// collaborator delivered, errors and retry decisions. It is separate from
// operational logging (slog). A trace is a complete machine-readable record
// for debugging session churn after the fact.
//
// # Basic Usage
//
// Clients are configured with a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Trace = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	fileLogger, err := log.NewFileLogger("/var/log/keeper/client.ktrace")
//	if err != nil {
//	    return err
//	}
//	defer fileLogger.Close()
//	cfg.Trace = fileLogger
//
//	// Both: use MultiLogger
//	cfg.Trace = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries the client ID and one payload:
//   - State: connection manager transitions and established sessions
//     (StateChangeEvent)
//   - Notification: raw notifications from the collaborator
//   - Error: connect and close failures, watcher panics (ErrorEventData)
//   - Retry: retry classifications (RetryEvent)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with the .ktrace extension.
// The keeper-log CLI tool provides viewing, statistics and filtering.
package log
