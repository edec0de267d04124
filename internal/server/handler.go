package server

import (
	"errors"
	"net/http"
	"strconv"
)

// ErrNotHandled is returned by a Stage that declines a request so the next
// stage in the chain gets a chance to answer it.
var ErrNotHandled = errors.New("request not handled by stage")

// Stage is one step of the ordered request-resolution chain.
//
// Attempt either produces a complete Response, returns ErrNotHandled (possibly
// wrapped) to fall through, or returns any other error, which the router turns
// into a 500. Stages must be safe for concurrent use; they hold only
// immutable configuration.
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string
	Attempt(req *http.Request) (*Response, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(req *http.Request) (*Response, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Attempt(req *http.Request) (*Response, error) { return s.Fn(req) }

// Response is a fully buffered reply produced by a Stage.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

// HTMLResponse builds a text/html response.
func HTMLResponse(status int, body []byte) *Response {
	return &Response{Status: status, ContentType: "text/html; charset=utf-8", Body: body}
}

// TextResponse builds a text/plain response.
func TextResponse(status int, body string) *Response {
	return &Response{Status: status, ContentType: "text/plain; charset=utf-8", Body: []byte(body)}
}

// RedirectResponse builds a 302 Found pointing at location.
func RedirectResponse(location string) *Response {
	h := make(http.Header)
	h.Set("Location", location)
	return &Response{Status: http.StatusFound, Header: h}
}

// Write sends the response and returns the number of body bytes written.
func (r *Response) Write(w http.ResponseWriter) (int64, error) {
	h := w.Header()
	for k, vv := range r.Header {
		for _, v := range vv {
			h.Add(k, v)
		}
	}
	if r.ContentType != "" {
		h.Set("Content-Type", r.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return 0, nil
	}
	n, err := w.Write(r.Body)
	return int64(n), err
}
