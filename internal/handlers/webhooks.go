package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"leadmarket/internal/middleware"
	"leadmarket/internal/services"
	"leadmarket/internal/validator"

	"github.com/go-chi/chi/v5"
)

type paymentEvent struct {
	ContractorID     string `json:"contractor_id"`
	AmountMinor      int64  `json:"amount_minor"`
	BonusMinor       int64  `json:"bonus_minor"`
	PaymentReference string `json:"payment_reference"`
	Description      string `json:"description"`
}

// PaymentWebhook credits a confirmed payment. The gateway may deliver the
// same event more than once; the payment reference makes that harmless.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidatePaymentEvent(raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var event paymentEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if event.BonusMinor > math.MaxInt64-event.AmountMinor {
		h.writeServiceError(w, r, services.ErrInvalidAmount)
		return
	}
	description := event.Description
	if description == "" {
		description = "credit purchase"
	}
	result, err := h.credits.TopUp(r.Context(), middleware.ActorFromContext(r.Context()), services.CreditRequest{
		ContractorID: event.ContractorID,
		Amount:       event.AmountMinor + event.BonusMinor,
		ReferenceID:  event.PaymentReference,
		Description:  description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	body := balanceBody(result.Balance)
	body["duplicate"] = result.Duplicate
	respondJSON(w, http.StatusOK, body)
}

func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateJobSubmission(raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var sub services.JobSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if sub.CustomerEmail != "" {
		if err := validator.ValidateEmail(sub.CustomerEmail); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_email")
			return
		}
	}
	if sub.CustomerPhone != "" {
		if err := validator.ValidatePhone(sub.CustomerPhone); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_phone")
			return
		}
	}
	jobID, err := h.intake.SubmitJob(r.Context(), middleware.ActorFromContext(r.Context()), sub)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"job_id": jobID})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.intake.GetJob(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

var errMissingCoordinates = errors.New("missing coordinates")

func (req locationRequest) validate() error {
	if req.Latitude == nil || req.Longitude == nil {
		return errMissingCoordinates
	}
	return nil
}

func (h *Handler) SetJobLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil || req.validate() != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.intake.SetJobLocation(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "jobID"), *req.Latitude, *req.Longitude)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
