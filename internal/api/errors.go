package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrRequestFailed wraps transport failures: the request never produced a response.
var ErrRequestFailed = errors.New("request failed")

// ErrMalformed reports a 2xx response whose body is not the expected shape.
var ErrMalformed = errors.New("malformed response")

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d: %s", e.Status, e.Message)
}

// newError builds an Error from a response body, preferring its "error"
// field, then "message", then the status text.
func newError(status int, body []byte) *Error {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, field := range []string{"error", "message"} {
			if v := gjson.GetBytes(body, field); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
				msg = strings.TrimSpace(v.String())
				break
			}
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	return &Error{Status: status, Message: msg}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }
func IsConflict(err error) bool     { return StatusOf(err) == http.StatusConflict }
func IsNotFound(err error) bool     { return StatusOf(err) == http.StatusNotFound }

// UserMessage turns err into text suitable for a notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusConflict:
			return "This email is already registered."
		case http.StatusUnauthorized:
			return "Session invalid, please sign in again."
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return "Request failed. Please try again later."
}
