package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"leadmarket/internal/money"
	"leadmarket/internal/services"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service outcomes onto status codes. Anything that is
// not a known domain error is logged and reported as internal_error.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *services.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":          "insufficient_funds",
			"balance":        money.FormatMinor(insufficient.Balance),
			"balance_minor":  insufficient.Balance,
			"required":       money.FormatMinor(insufficient.Required),
			"required_minor": insufficient.Required,
		})
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInvalidLocation):
		respondError(w, http.StatusBadRequest, "invalid_location")
	case errors.Is(err, services.ErrInvalidJob):
		respondError(w, http.StatusBadRequest, "invalid_job")
	case errors.Is(err, services.ErrInvalidAccount):
		respondError(w, http.StatusBadRequest, "invalid_account")
	case errors.Is(err, services.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "job_not_found")
	case errors.Is(err, services.ErrPurchaseNotFound):
		respondError(w, http.StatusNotFound, "purchase_not_found")
	case errors.Is(err, services.ErrContractorNotFound):
		respondError(w, http.StatusNotFound, "contractor_not_found")
	case errors.Is(err, services.ErrJobNotAvailable):
		respondError(w, http.StatusConflict, "job_not_available")
	case errors.Is(err, services.ErrAlreadyRefunded):
		respondError(w, http.StatusConflict, "already_refunded")
	case errors.Is(err, services.ErrJobNotRefundable):
		respondError(w, http.StatusConflict, "job_not_refundable")
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, services.ErrReferenceConflict):
		respondError(w, http.StatusConflict, "reference_conflict")
	case errors.Is(err, services.ErrAccountExists):
		respondError(w, http.StatusConflict, "account_exists")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dest)
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads ?limit= and ?page= with the limit capped at 200.
func pagination(r *http.Request, defaultLimit int) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), defaultLimit)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}

func balanceBody(balance int64) map[string]any {
	return map[string]any{
		"balance":       money.FormatMinor(balance),
		"balance_minor": balance,
	}
}
