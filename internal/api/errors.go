package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Client errors.
var (
	ErrMissingToken      = errors.New("an API token is required for protected endpoints")
	ErrMalformedResponse = errors.New("malformed response envelope")
	ErrInvalidBaseURL    = errors.New("invalid API base URL")
)

// Error is a request the backend rejected, either with a non-2xx status or
// with "ok": false in the envelope.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.UserMessage())
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// UserMessage is the backend's message, or the HTTP status text when the
// backend sent none.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
