package server

import (
	"errors"
	"net/http"
)

// defaultMessages maps the status codes this server emits on its own to
// their plain-text bodies.
var defaultMessages = map[int]string{
	http.StatusNotFound:            "404 - Page Not Found",
	http.StatusInternalServerError: "Internal Server Error",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
}

// IsNotHandled reports whether err signals a stage fall-through.
func IsNotHandled(err error) bool {
	return errors.Is(err, ErrNotHandled)
}

// ErrorResponse builds a plain-text error response. An empty message uses the
// default text for statusCode.
func ErrorResponse(statusCode int, message string) *Response {
	if message == "" {
		message = defaultMessages[statusCode]
		if message == "" {
			message = http.StatusText(statusCode)
		}
	}
	return TextResponse(statusCode, message)
}

// WriteErrorResponse writes a plain-text error response directly to w.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) (int64, error) {
	return ErrorResponse(statusCode, message).Write(w)
}
