package handlers

import (
	"net/http"

	"leadmarket/internal/middleware"
	"leadmarket/internal/models"
	"leadmarket/internal/money"
	"leadmarket/internal/store"

	"github.com/go-chi/chi/v5"
)

// ListLeads serves the public map. It needs no identity.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, store.DefaultOpenJobsLimit)
	jobs, err := h.marketplace.ListOpenJobs(r.Context(), store.OpenJobsFilter{
		Trade:  r.URL.Query().Get("trade"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (h *Handler) UnlockLead(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	result, err := h.marketplace.UnlockLead(r.Context(), actor, actor.ID, chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"purchase_id":             result.PurchaseID,
		"job_id":                  result.JobID,
		"contact":                 result.Contact,
		"price_paid":              money.FormatMinor(result.PricePaid),
		"price_paid_minor":        result.PricePaid,
		"remaining_balance":       money.FormatMinor(result.RemainingBalance),
		"remaining_balance_minor": result.RemainingBalance,
	})
}

type advanceJobRequest struct {
	Status string `json:"status"`
}

func (h *Handler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	var req advanceJobRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	job, err := h.marketplace.AdvanceJob(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "jobID"), models.JobStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}
