package api

import (
	"errors"
	"io"
	"net/http"

	"thumbexpert/internal/billing"
)

const maxWebhookBody = 64 << 10

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		writeUnavailable(w)
		return
	}
	user, err := s.auth.Me(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.billing.Checkout(r.Context(), user)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			writeUnavailable(w)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		writeUnavailable(w)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "unreadable body"})
		return
	}

	err = s.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, billing.ErrSignature):
		s.logger.Warn("stripe webhook rejected", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid signature"})
	case errors.Is(err, billing.ErrNotConfigured):
		writeUnavailable(w)
	default:
		s.writeError(w, r, err)
	}
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error:   "unavailable",
		Message: "Payments are not available right now.",
	})
}
