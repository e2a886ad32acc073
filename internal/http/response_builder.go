// Package http serves the analytics engine over a small JSON API.
//
// This file holds the fluent builder used by every handler to write JSON
// responses with consistent headers and error bodies.

package http

import (
	"encoding/json"
	"net/http"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a response header.
func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers[key] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write encodes the response. Encoding happens before the status line so a
// value that cannot be marshalled turns into a 500 instead of a truncated body.
func (b *ResponseBuilder) Write(w http.ResponseWriter) error {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return nil
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, err = w.Write(append(data, '\n'))
	return err
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse writes an error body with the given status.
func ErrorResponse(w http.ResponseWriter, status int, message, requestID string) {
	_ = NewResponse().Status(status).JSON(ErrorBody{Error: message, RequestID: requestID}).Write(w)
}
