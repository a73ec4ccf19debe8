// Package connection is the HTTP client eventlink-cli uses to talk to a
// node's admin API.
//
// Every admin response is a JSON envelope with code, message, request_id,
// timestamp and data fields. The client unwraps data into the caller's
// value and turns non-OK envelopes into *APIError.
package connection
