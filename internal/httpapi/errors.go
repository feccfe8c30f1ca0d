package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	kerrors "github.com/kotadb/kotadb/internal/errors"
)

// errGraphNotBuilt is returned by graph-analysis routes before any ingest
// has run, so there is no dependency graph to query yet.
var errGraphNotBuilt = errors.New("dependency graph has not been built yet; run an ingest first")

// errorBody is the {error, message} shape every non-2xx response carries,
// tagged with the request's trace id so an operator can correlate a client
// report with a server-side log line.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// statusFor maps an error Kind to the HTTP status codes §6 names.
func statusFor(kind kerrors.Kind) int {
	switch kind {
	case kerrors.NotFound:
		return http.StatusNotFound
	case kerrors.AlreadyExists:
		return http.StatusConflict
	case kerrors.BadRequest:
		return http.StatusBadRequest
	case kerrors.Unavailable:
		return http.StatusServiceUnavailable
	case kerrors.Corruption, kerrors.IO, kerrors.Cancelled, kerrors.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := kerrors.KindOf(err)
	body := errorBody{
		Error:   string(kind),
		Message: err.Error(),
		TraceID: traceIDFrom(r.Context()),
	}
	writeJSON(w, statusFor(kind), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:   string(kerrors.BadRequest),
		Message: message,
		TraceID: traceIDFrom(r.Context()),
	})
}
