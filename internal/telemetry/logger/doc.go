// Package logger configures log/slog for EventLink.
//
// NewSlog returns a *slog.Logger whose level is shared process-wide
// (SetLevel, used by the config watcher), whose attributes pass through the
// redactor in redact.go, and which picks up request IDs stored with
// WithRequestID when records are logged through the *Context methods.
package logger
