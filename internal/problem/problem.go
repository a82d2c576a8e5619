// Package problem renders API errors as problem details
// (application/problem+json).
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ContentType is the media type of every error body.
const ContentType = "application/problem+json"

// TypeBase prefixes the numeric status to form the problem type URI.
const TypeBase = "https://docs.leadkit.dev/problems/"

// GenericDetail is returned for unexpected failures outside debug mode.
const GenericDetail = "An unexpected error occurred"

var titles = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusConflict:            "Conflict",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
}

// Details is the wire shape of an error response.
type Details struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// Normalize maps statuses outside the catalogue to 500.
func Normalize(status int) int {
	if _, ok := titles[status]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// TypeURI returns the problem type for a status.
func TypeURI(status int) string {
	return fmt.Sprintf("%s%d", TypeBase, Normalize(status))
}

// Title returns the fixed title for a status.
func Title(status int) string {
	return titles[Normalize(status)]
}

// New builds the details for status and detail.
func New(status int, detail, instance string) Details {
	status = Normalize(status)
	return Details{
		Type:     TypeURI(status),
		Title:    Title(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// Write sends a problem response.
func Write(w http.ResponseWriter, status int, detail, instance string) {
	d := New(status, detail, instance)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	json.NewEncoder(w).Encode(d)
}

// Error is a handler error that carries the HTTP status and client-facing
// detail it should be rendered with.
type Error struct {
	Status int
	Detail string
	Err    error
}

// Errorf returns an *Error with a formatted detail.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause that is logged but never shown to the
// client.
func Wrap(status int, detail string, err error) *Error {
	return &Error{Status: status, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Detail, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Convenience constructors for the common statuses.
func BadRequest(detail string) *Error { return &Error{Status: http.StatusBadRequest, Detail: detail} }
func Forbidden(detail string) *Error  { return &Error{Status: http.StatusForbidden, Detail: detail} }
func NotFound(detail string) *Error   { return &Error{Status: http.StatusNotFound, Detail: detail} }
func Conflict(detail string) *Error   { return &Error{Status: http.StatusConflict, Detail: detail} }

// WriteError renders err. A *Error keeps its status and detail. Anything
// else is a 500 with a generic detail, or the error text when debug is set.
func WriteError(w http.ResponseWriter, err error, debug bool, instance string) {
	var pe *Error
	if errors.As(err, &pe) {
		Write(w, pe.Status, pe.Detail, instance)
		return
	}
	detail := GenericDetail
	if debug && err != nil {
		detail = GenericDetail + ": " + err.Error()
	}
	Write(w, http.StatusInternalServerError, detail, instance)
}

// StatusOf returns the status err would be rendered with.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return Normalize(pe.Status)
	}
	return http.StatusInternalServerError
}
