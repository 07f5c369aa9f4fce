package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Error  string   `json:"error,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the error taxonomy onto status codes: validation 422,
// not found 404, assignment 409, anything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *apperr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Errors: validationErr.Errors})
	case apperr.IsAssignmentError(err):
		hlog.FromRequest(r).Warn().Err(err).Msg("no backend for user")
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
