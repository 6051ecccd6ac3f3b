package apierror

import (
	"errors"
	"net/http"
)

// Body is the caller-facing error envelope, shared by JSON error responses
// and terminal stream error frames.
type Body struct {
	Error Detail `json:"error"`
}

// Detail mirrors the OpenAI error object. Empty fields are omitted.
type Detail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Map resolves any error to a status code and error body. The mapping is
// total over the taxonomy; KindClientDisconnected never reaches a caller and
// maps like an internal error if it ever does.
func Map(err error) (int, Body) {
	kind := KindOf(err)
	message := messageOf(err)

	switch kind {
	case KindRateLimited:
		return http.StatusTooManyRequests, body("rate_limit_exceeded", message, "rate_limit", paramOf(err))
	case KindInvalidRequest:
		return http.StatusBadRequest, body("invalid_request", message, "invalid_request", paramOf(err))
	case KindInvalidModel:
		return http.StatusBadRequest, body("model_not_found", message, "model_not_found", paramOf(err))
	case KindUpstreamAuth:
		return http.StatusBadGateway, body("authentication_error", message, "authentication_error", "")
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, body("server_error", message, "server_error", "")
	default:
		return http.StatusInternalServerError, body("server_error", message, "server_error", "")
	}
}

func body(errType, message, code, param string) Body {
	return Body{Error: Detail{
		Type:    errType,
		Message: message,
		Param:   param,
		Code:    code,
	}}
}

func messageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "Internal server error"
}

func paramOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Param
	}
	return ""
}
