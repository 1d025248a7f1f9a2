// Package apierr defines the gateway's error taxonomy (§7) and its
// translation to the OpenAI-shaped client error envelope.
package apierr

import (
	"net/http"

	"github.com/Laisky/errors/v2"
)

// Kind is one of the distinct, user-visible error kinds from §7.
type Kind string

const (
	BadRequest       Kind = "bad_request"
	AuthMissing      Kind = "auth_missing"
	AuthInvalid      Kind = "auth_invalid"
	UnknownEndpoint  Kind = "unknown_endpoint"
	BadEndpointMethod Kind = "bad_endpoint_method"
	ModelNotFound    Kind = "model_not_found"
	UserRateLimit    Kind = "user_rate_limit"
	ModelRateLimit   Kind = "model_rate_limit"
	ModelUnavailable Kind = "model_unavailable"
	BackendError     Kind = "backend_error"
	InternalError    Kind = "internal_error"
)

// httpStatus is the §7 Kind -> HTTP status mapping.
var httpStatus = map[Kind]int{
	BadRequest:        http.StatusBadRequest,
	AuthMissing:       http.StatusUnauthorized,
	AuthInvalid:       http.StatusUnauthorized,
	UnknownEndpoint:   http.StatusNotFound,
	BadEndpointMethod: http.StatusMethodNotAllowed,
	ModelNotFound:     http.StatusNotFound,
	UserRateLimit:     http.StatusTooManyRequests,
	ModelRateLimit:    http.StatusServiceUnavailable,
	ModelUnavailable:  http.StatusServiceUnavailable,
	BackendError:      http.StatusBadGateway,
	InternalError:     http.StatusInternalServerError,
}

// openAIType is the §7 Kind -> OpenAI error `type` mapping.
var openAIType = map[Kind]string{
	BadRequest:        "invalid_request_error",
	AuthMissing:       "invalid_request_error",
	AuthInvalid:       "invalid_request_error",
	UnknownEndpoint:   "invalid_request_error",
	BadEndpointMethod: "invalid_request_error",
	ModelNotFound:     "invalid_request_error",
	UserRateLimit:     "insufficient_quota",
	ModelRateLimit:    "server_error",
	ModelUnavailable:  "server_error",
	BackendError:      "server_error",
	InternalError:     "server_error",
}

// openAICode is the §7 Kind -> OpenAI error `code` mapping; empty means null.
var openAICode = map[Kind]string{
	AuthInvalid:   "invalid_api_key",
	ModelNotFound: "model_not_found",
	UserRateLimit: "insufficient_quota",
}

// Error is the gateway's error type: a Kind plus the wrapped cause.
type Error struct {
	Kind  Kind
	cause error
}

// New builds an Error of the given kind with a message, matching the
// Laisky/errors/v2 convention of always carrying a stack trace.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping an existing cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

func (e *Error) Error() string {
	if e == nil || e.cause == nil {
		return string(e.Kind)
	}
	return e.cause.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus returns the status code this error should surface as.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Envelope is the OpenAI-shaped `{"error": {...}}` response body (§6).
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

// EnvelopeBody is the inner `error` object of Envelope.
type EnvelopeBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

// ToEnvelope renders e as the client-facing OpenAI error body.
func (e *Error) ToEnvelope(requestID string) Envelope {
	msg := e.Error()
	if requestID != "" {
		msg = msg + " (request id: " + requestID + ")"
	}

	body := EnvelopeBody{
		Message: msg,
		Type:    openAIType[e.Kind],
	}
	if code, ok := openAICode[e.Kind]; ok {
		body.Code = &code
	}
	return Envelope{Error: body}
}

// As reports whether err is (or wraps) an *Error, mirroring errors.As.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
