// Package httpserver serves the admin API of an EventLink node over
// stdlib net/http:
//
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Middleware chain: RequestID, Recover, NetworkACL, RateLimit, Audit.
package httpserver
