package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	maxBodyBytes = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}

// writeAPIError writes the error body every failing API call returns.
func writeAPIError(w http.ResponseWriter, status int, errorCode, reason, description string) {
	writeJSON(w, status, apimodel.ErrorResponse{
		Error:       errorCode,
		Code:        reason,
		Description: description,
	})
}

func writeUnauthorized(w http.ResponseWriter, reason, description string) {
	writeAPIError(w, http.StatusUnauthorized, "unauthorized", reason, description)
}

// writeStoreError maps a repository error to a response.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, "not_found", "", err.Error())
	case errors.Is(err, apperrors.ErrUnknownResource):
		writeAPIError(w, http.StatusNotFound, "not_found", "", err.Error())
	default:
		log.Err(err).Msg("Record store failure")
		writeAPIError(w, http.StatusInternalServerError, "server_error", "", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
