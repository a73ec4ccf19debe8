package logger

import (
	"log/slog"
	"strings"
)

// Key fragments whose values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"private_key",
	"sealed_key",
	"credential",
}

// PEM headers that mark key material.
var sensitivePEMMarkers = []string{
	"PRIVATE KEY-----",
	"SEALED KEY-----",
}

const redactedValue = "***REDACTED***"

// redactSensitive replaces sensitive string attributes with a placeholder.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if IsSensitiveKey(a.Key) || IsSensitiveValue(v) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactString returns the placeholder for key material and value otherwise.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return redactedValue
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value carries a PEM encoded key.
func IsSensitiveValue(value string) bool {
	if !strings.Contains(value, "-----BEGIN ") {
		return false
	}
	for _, marker := range sensitivePEMMarkers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}
