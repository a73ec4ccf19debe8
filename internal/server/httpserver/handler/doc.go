// Package handler implements the admin HTTP API of an EventLink node.
//
//   - trust.go: trust store and identity
//   - routes.go: routing tables
//   - admin.go: connections, messages and status
//   - health.go: health and readiness checks
//
// Every JSON body uses the Response envelope.
package handler
