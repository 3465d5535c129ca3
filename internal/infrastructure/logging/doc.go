// Package logging provides structured logging for Gray Logic Integrations.
//
// This package wraps Go's standard log/slog package so that every
// integration, flow and coordinator logs with the same shape.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	flowLog := logger.With("component", "flow")
//	flowLog.Info("flow started", "domain", "minecraft_server")
//
// Never log secrets or API tokens.
package logging
