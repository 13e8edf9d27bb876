package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"thumbexpert/internal/apperror"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "err", err)
		}
	}
}

// writeError maps the apperror kinds to HTTP statuses. Anything else is a 500 with a generic message.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, kind := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		status, kind = http.StatusBadGateway, "upstream_error"
		s.logger.Warn("upstream failure", "path", r.URL.Path, "err", appErr.Err)
	}

	writeJSON(w, status, errorResponse{Error: kind, Message: appErr.Message})
}

// decodeJSON reads one JSON document into dst, rejecting bodies over the configured limit.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}
	return nil
}
