// Package logging provides structured logging for the PJLink bridge.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text for development
//   - service and version fields on every entry
//   - level filtering (debug, info, warn, error)
//   - attributes named like credentials (password, token, secret) are redacted
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("projector connected", "host", cfg.Projector.Host)
//
// *Logger satisfies the small Logger interfaces declared by the pjlink,
// state and projector packages.
package logging
