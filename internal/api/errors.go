package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Common error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeUnavailable   = "unavailable"
	ErrCodeUnknownDevice = "unknown_device"
)

// Result is what a handler produces: a status and a body. Handlers
// return one instead of writing ad hoc maps.
type Result struct {
	Status int
	Body   any
}

func ok(body any) Result {
	return Result{Status: http.StatusOK, Body: body}
}

func created(body any) Result {
	return Result{Status: http.StatusCreated, Body: body}
}

func fail(status int, code, message string) Result {
	return Result{Status: status, Body: Error{Error: message, Code: code}}
}

func badRequest(message string) Result {
	return fail(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func notFound(message string) Result {
	return fail(http.StatusNotFound, ErrCodeNotFound, message)
}

func internalError(message string) Result {
	return fail(http.StatusInternalServerError, ErrCodeInternal, message)
}

// handlerFunc is a handler that returns its response.
type handlerFunc func(r *http.Request) Result

// respond adapts a handlerFunc to http.HandlerFunc.
func respond(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h(r)
		writeJSON(w, res.Status, res.Body)
	}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Error: message, Code: code})
}
