// Package apierror defines the gateway failure taxonomy and maps every
// failure onto exactly one caller-facing status code and error body.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Every error that reaches a caller resolves to
// exactly one Kind.
type Kind int

const (
	// KindUnknown covers unclassified internal failures.
	KindUnknown Kind = iota

	// KindRateLimited is an admission rejection from the rate limiter.
	KindRateLimited

	// KindInvalidRequest is a malformed or empty caller request.
	KindInvalidRequest

	// KindInvalidModel is a request for a model outside the supported set.
	KindInvalidModel

	// KindUpstreamAuth is a backend authentication or authorization failure.
	// Treated as an upstream fault, not a caller fault.
	KindUpstreamAuth

	// KindUpstreamUnavailable is a transient backend failure (unreachable,
	// overloaded, or 5xx).
	KindUpstreamUnavailable

	// KindUpstreamError is any other backend-originated failure.
	KindUpstreamError

	// KindClientDisconnected marks client-driven cancellation. Never mapped
	// to a response; suppressed and logged at most.
	KindClientDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidModel:
		return "invalid_model"
	case KindUpstreamAuth:
		return "upstream_auth"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstreamError:
		return "upstream_error"
	case KindClientDisconnected:
		return "client_disconnected"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Message string

	// Param names the request field that caused a validation failure.
	Param string

	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// RateLimited is the admission rejection error.
func RateLimited() *Error {
	return New(KindRateLimited, "Rate limit exceeded")
}

// InvalidRequest reports a malformed request. param may be empty.
func InvalidRequest(message, param string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message, Param: param}
}

// InvalidModel reports an unsupported model identifier.
func InvalidModel(model string) *Error {
	return Newf(KindInvalidModel, "Model '%s' not found", model)
}

// ClientDisconnected marks a client-driven cancellation.
func ClientDisconnected(err error) *Error {
	return Wrap(KindClientDisconnected, "client disconnected", err)
}

// KindOf extracts the Kind from err, walking the wrap chain. Unclassified
// errors report KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
