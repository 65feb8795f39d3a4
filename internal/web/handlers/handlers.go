// Package handlers serves the review API: survey runs kept in memory,
// their partitions and manual overrides, and the mapping store.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/dedupe"
	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
)

// Config represents the handler configuration (to avoid import cycle)
type Config struct {
	Features struct {
		ExportEnabled         bool
		ManualOverrideEnabled bool
	}
	MaxUploadBytes int64
}

type errorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps domain errors to status codes
func writeFailure(w http.ResponseWriter, err error) {
	var colErr *columns.ColumnResolutionError
	var cfgErr *survey.ConfigurationError
	switch {
	case errors.As(err, &colErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Missing: colErr.Missing})
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dedupe.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
