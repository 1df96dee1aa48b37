package httpapi

import (
	"encoding/json"
	"net/http"

	"llmworker/internal/engine"
	"llmworker/internal/worker"
	"llmworker/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps errors returned before any record was streamed.
func statusFor(err error) int {
	switch {
	case worker.IsTooBusy(err):
		return http.StatusTooManyRequests
	case engine.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case worker.IsValidation(err), worker.IsTypeMismatch(err):
		return http.StatusBadRequest
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
