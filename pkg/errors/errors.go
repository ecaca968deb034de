package errors

import (
	"net/http"
	"strings"
)

// ErrorResponse represents the canonical error envelope returned by Evently APIs.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// New builds an envelope whose code is derived from the HTTP status text.
func New(status int, message, requestID string) ErrorResponse {
	return ErrorResponse{
		Code:      CodeFor(status),
		Message:   message,
		RequestID: requestID,
	}
}

// CodeFor returns the snake_case code used for status, e.g. 404 -> "not_found".
func CodeFor(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "internal_server_error"
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}

// Codes carried in ErrorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodePayloadTooLarge     = "request_entity_too_large"
	CodeUnprocessableEntity = "unprocessable_entity"
	CodeGatewayTimeout      = "gateway_timeout"
	CodeInternal            = "internal_server_error"
)

// ToStatusCode maps a domain specific error code to an HTTP status for default responses.
func ToStatusCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case CodeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
