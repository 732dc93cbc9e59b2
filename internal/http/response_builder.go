// This file implements a small builder for handler responses: redirects that
// carry a flash message, and plain error replies.

package http

import (
	"net/http"
)

// ResponseBuilder collects status, headers, flash and body before writing.
type ResponseBuilder struct {
	statusCode int
	location   string
	flash      []flashMessage
	headers    map[string]string
	body       []byte
}

// NewResponse starts a 200 response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Notice queues a success message for the next rendered page.
func (b *ResponseBuilder) Notice(msg string) *ResponseBuilder {
	b.flash = append(b.flash, flashMessage{kind: flashNotice, text: msg})
	return b
}

// Alert queues a failure message for the next rendered page.
func (b *ResponseBuilder) Alert(msg string) *ResponseBuilder {
	b.flash = append(b.flash, flashMessage{kind: flashAlert, text: msg})
	return b
}

// RedirectTo turns the response into a redirect. Unless a 3xx status was set
// explicitly, GET and HEAD redirect with 302 and everything else with 303 so
// the browser follows up with a GET.
func (b *ResponseBuilder) RedirectTo(location string) *ResponseBuilder {
	b.location = location
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) BodyString(content string) *ResponseBuilder {
	b.body = []byte(content)
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, f := range b.flash {
		setFlash(w, r, f)
	}

	if b.location != "" {
		status := b.statusCode
		if status < 300 || status > 399 {
			status = http.StatusSeeOther
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				status = http.StatusFound
			}
		}
		http.Redirect(w, r, b.location, status)
		return
	}

	if len(b.body) > 0 && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse is a plain text reply with the given status.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).BodyString(message)
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
