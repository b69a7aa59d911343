// Package logging provides structured logging for Gatherly Core.
//
// It wraps log/slog with configuration-driven level filtering, output
// format selection (JSON or text), and default service/version fields.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("event created", "event_id", evt.ID)
package logging
