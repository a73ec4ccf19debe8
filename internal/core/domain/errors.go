package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes follow the EL-<AREA>-<NNNN> format.
type DomainError struct {
	Code    string // Error code (e.g., "EL-TRUST-4030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Trust Errors (TRUST)
// ============================================================================

var (
	// ErrTrustFailure indicates the peer certificate is absent from the
	// trust store or does not match the stored one.
	ErrTrustFailure = NewDomainError("EL-TRUST-4030", "peer certificate not trusted")

	// ErrTrustNotFound indicates there is no trust entry for a node name.
	ErrTrustNotFound = NewDomainError("EL-TRUST-4040", "trusted peer not found")

	// ErrInvalidTrustEntry indicates a malformed trust entry or alias.
	ErrInvalidTrustEntry = NewDomainError("EL-TRUST-4001", "invalid trust entry")

	// ErrIdentitySealed indicates the identity key could not be unsealed.
	ErrIdentitySealed = NewDomainError("EL-TRUST-4010", "identity key cannot be unsealed")
)

// ============================================================================
// Link Errors (LINK)
// ============================================================================

var (
	// ErrLinkFailure indicates an I/O failure on an established link.
	ErrLinkFailure = NewDomainError("EL-LINK-5030", "link failure")

	// ErrLinkClosed indicates the link is no longer open.
	ErrLinkClosed = NewDomainError("EL-LINK-5031", "link closed")

	// ErrFrameTooLarge indicates a frame above the configured size limit.
	ErrFrameTooLarge = NewDomainError("EL-LINK-4130", "frame too large")

	// ErrProtocol indicates an unexpected frame during the link handshake.
	ErrProtocol = NewDomainError("EL-LINK-4000", "protocol violation")
)

// ============================================================================
// Routing and Send Errors (ROUTE / SEND)
// ============================================================================

var (
	// ErrRouteMiss indicates the table or entry does not exist.
	ErrRouteMiss = NewDomainError("EL-ROUTE-4040", "route not found")

	// ErrReservedTable indicates an administrative write to a reserved table.
	ErrReservedTable = NewDomainError("EL-ROUTE-4030", "table is reserved")

	// ErrSendFailure indicates no target resolved to an open link.
	ErrSendFailure = NewDomainError("EL-SEND-4040", "no route to target")
)

// ============================================================================
// General Errors
// ============================================================================

var (
	// ErrInvalidArgument indicates invalid input.
	ErrInvalidArgument = NewDomainError("EL-ARG-1001", "invalid argument")

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = NewDomainError("EL-SYS-5000", "internal error")

	// ErrForbidden indicates the caller is not allowed to use the endpoint.
	ErrForbidden = NewDomainError("EL-AUTH-4030", "forbidden")
)
