package handler

import (
	"time"

	"github.com/yndnr/eventlink-go/internal/infra/buildinfo"
	"github.com/yndnr/eventlink-go/internal/node"
	"github.com/yndnr/eventlink-go/internal/routing"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// AddTrustRequest is the body of POST /admin/v1/trust.
type AddTrustRequest struct {
	Name           string `json:"name"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	CertificatePEM string `json:"certificate_pem"`
}

// TrustEntry describes one trusted peer.
type TrustEntry struct {
	Name        string    `json:"name" yaml:"name"`
	Alias       string    `json:"alias" yaml:"alias"`
	Host        string    `json:"host" yaml:"host"`
	Port        int       `json:"port" yaml:"port"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	NotAfter    time.Time `json:"not_after,omitempty" yaml:"not_after,omitempty"`
	Connected   bool      `json:"connected" yaml:"connected"`
}

// RemoveTrustResponse is returned by DELETE /admin/v1/trust/{name}.
type RemoveTrustResponse struct {
	Trust      string `json:"trust" yaml:"trust"`
	Connection string `json:"connection" yaml:"connection"`
}

// RefreshTrustResponse is returned by POST /admin/v1/trust/refresh.
type RefreshTrustResponse struct {
	Opened int `json:"opened" yaml:"opened"`
}

// IdentityResponse is returned by GET /admin/v1/identity.
type IdentityResponse struct {
	Name           string    `json:"name" yaml:"name"`
	Fingerprint    string    `json:"fingerprint" yaml:"fingerprint"`
	NotAfter       time.Time `json:"not_after" yaml:"not_after"`
	CertificatePEM string    `json:"certificate_pem" yaml:"certificate_pem"`
}

// AddEntryRequest is the body of POST /admin/v1/routes/{table}.
type AddEntryRequest struct {
	Name string `json:"name"`
}

// TableResponse lists the entries of one table sorted by name.
type TableResponse struct {
	Name    string          `json:"name" yaml:"name"`
	Entries []routing.Entry `json:"entries" yaml:"entries"`
}

// SendMessageRequest is the body of POST /admin/v1/messages.
type SendMessageRequest struct {
	Targets []string `json:"targets"`
	Kind    string   `json:"kind"`
	Body    string   `json:"body"`
}

// SendMessageResponse reports the outcome of a send.
type SendMessageResponse struct {
	ID   string `json:"id" yaml:"id"`
	Sent bool   `json:"sent" yaml:"sent"`
}

// StatusResponse is returned by GET /admin/v1/status.
type StatusResponse struct {
	node.Status `yaml:",inline"`
	Build       buildinfo.Info `json:"build" yaml:"build"`
}

// HealthResponse is returned by /health and /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Node   string `json:"node,omitempty"`
}
