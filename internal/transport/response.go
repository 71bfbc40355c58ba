// Package transport binds pages to HTTP: the HTML form adapter, the Datastar
// SSE adapter, the chi and ServeMux routers and the middleware chain.
package transport

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"

	"github.com/pitabwire/statepage/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:       http.StatusBadRequest,
	model.ErrUnauthorized:     http.StatusUnauthorized,
	model.ErrForbidden:        http.StatusForbidden,
	model.ErrNotFound:         http.StatusNotFound,
	model.ErrMethodNotAllowed: http.StatusMethodNotAllowed,
	model.ErrInternalError:    http.StatusInternalServerError,
	model.ErrTemplate:         http.StatusInternalServerError,
	model.ErrSerialization:    http.StatusInternalServerError,
	model.ErrSession:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	if status := statusForCode[ee.Code]; status != 0 {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. Errors that are not envelopes become a generic 500 so
// causes never leak to the client.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, StatusFor(ee), errorResponse{Error: ee})
}

// WriteHTML writes a rendered page.
func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteHTMLError writes a minimal HTML error page for browser clients.
func WriteHTMLError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}
	status := StatusFor(ee)
	body := "<!DOCTYPE html><html><head><title>" + http.StatusText(status) + "</title></head><body>" +
		"<h1>" + http.StatusText(status) + "</h1><p>" + html.EscapeString(ee.Message) + "</p>"
	if ee.TraceID != "" {
		body += "<p><small>trace " + html.EscapeString(ee.TraceID) + "</small></p>"
	}
	WriteHTML(w, status, []byte(body+"</body></html>"))
}

// WriteRedirect sends a 302 to url.
func WriteRedirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, POST")
	WriteError(w, model.NewMethodNotAllowedError(r.Method))
}
