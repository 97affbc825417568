package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/service"
	"github.com/voyagen/confsync/internal/store"
)

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 16 << 20

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := chi.URLParam(r, param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

// decodeJSON reads the request body into v. Unknown fields are ignored so
// exporters that add extra keys keep working.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeStatus(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("writeJSON")
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: detail,
	})
}

// writeErr maps service and store errors onto the envelope. Anything
// unrecognized is logged with its stack and reported without detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeStatus(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeStatus(w, r, http.StatusNotFound, err.Error())
	default:
		logging.FromContext(r.Context()).Error().Stack().Err(err).Msg("request failed")
		writeStatus(w, r, http.StatusInternalServerError, "")
	}
}
