// Package httpkit provides handler and routing helpers that alias the platform http package
// use these from modules so they do not import internal/platform/net/http directly
package httpkit

import (
	"net/http"

	perr "landpulse/internal/platform/errors"
	phttp "landpulse/internal/platform/net/http"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Accepted returns a 202 response
func Accepted(data any) Response { return Response{Status: http.StatusAccepted, Body: data} }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// URLParam reads a chi path parameter
func URLParam(r *http.Request, key string) string { return phttp.URLParam(r, key) }

// Call adapts a handler that takes no JSON body
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(phttp.Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}

// Handle lets you directly adapt a Response-returning function if you prefer
func Handle(fn func(*http.Request) Response) Handler {
	return phttp.Handle(fn)
}

// JSON writes v as a bare JSON body, outside the envelope
func JSON(w http.ResponseWriter, status int, v any) { phttp.JSON(w, status, v) }

// FlatError is the bare {"error": "..."} body used by the page facing routes
type FlatError struct {
	Error string `json:"error" example:"locality \"Atlantis\" not found"`
}

// WriteFlatError writes err as a FlatError with its mapped status
func WriteFlatError(w http.ResponseWriter, err error) {
	status := perr.HTTPStatus(err)
	msg := perr.WireFrom(err).Message
	if status >= http.StatusInternalServerError && perr.CodeOf(err) == perr.ErrorCodeUnknown {
		msg = err.Error()
	}
	phttp.JSON(w, status, FlatError{Error: msg})
}
