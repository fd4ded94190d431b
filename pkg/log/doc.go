// Package log provides structured protocol logging for the token.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (simulator link, APDU / CTAPHID
// transport, application). It is separate from operational logging (slog):
// protocol capture provides a complete machine-readable trace of every frame
// and command for debugging provisioning runs.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production lines: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/attn/station-01.plog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Link / Transport: Raw frame bytes (FrameEvent)
//   - App: Decoded commands with their outcome (CommandEvent)
//   - State: Application selection and buffer selection (StateChangeEvent)
//
// Errors have a dedicated event type.
//
// # File Format
//
// Log files are back-to-back CBOR events with the .plog extension.
// NewRotatingFileLogger moves a full file to <path>.1 and starts over.
// The provlog tool and the provctl log command print and filter them.
package log
