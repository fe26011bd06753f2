package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/engine"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr picks the status for an error coming out of the engine.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var terr *transition.Error
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, graph.ErrNodeNotFound),
		errors.Is(err, graph.ErrNotInGraph):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, store.ErrInvalidName),
		errors.Is(err, graph.ErrPortOutOfRange),
		errors.Is(err, circuit.ErrUnknownNodeType):
		return http.StatusBadRequest
	case errors.Is(err, circuit.ErrTypeMismatch),
		errors.Is(err, circuit.ErrSameDirection),
		errors.Is(err, circuit.ErrSameNode),
		errors.Is(err, circuit.ErrAlreadyBound),
		errors.Is(err, circuit.ErrNotSettable),
		errors.Is(err, graph.ErrGatewayRemoval),
		errors.Is(err, errBadArgs),
		errors.As(err, &terr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
	return false
}
