// Package api provides HTTP API handlers for the camtrack tracking service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/camtrack/internal/camshift"
	"github.com/ayusman/camtrack/internal/report"
	"github.com/ayusman/camtrack/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, camshift.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, camshift.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, report.ErrNoPoints):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with the status statusFor assigns to it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
