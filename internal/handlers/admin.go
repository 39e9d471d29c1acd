package handlers

import (
	"errors"
	"io"
	"net/http"

	"leadmarket/internal/middleware"
	"leadmarket/internal/money"
	"leadmarket/internal/services"
	"leadmarket/internal/store"

	"github.com/go-chi/chi/v5"
)

type openAccountRequest struct {
	ContractorID string `json:"contractor_id"`
	DisplayName  string `json:"display_name"`
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := decodeJSON(r, &req); err != nil || req.ContractorID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.credits.OpenAccount(r.Context(), middleware.ActorFromContext(r.Context()), req.ContractorID, req.DisplayName); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"contractor_id": req.ContractorID})
}

type topUpRequest struct {
	Amount      string `json:"amount"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description"`
}

func (h *Handler) AdminTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	description := req.Description
	if description == "" {
		description = "manual top-up"
	}
	result, err := h.credits.TopUp(r.Context(), middleware.ActorFromContext(r.Context()), services.CreditRequest{
		ContractorID: chi.URLParam(r, "id"),
		Amount:       amount,
		ReferenceID:  req.ReferenceID,
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

type adjustRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) AdminAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	delta, err := parseDeltaMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	balance, err := h.credits.Adjust(r.Context(), middleware.ActorFromContext(r.Context()), services.AdjustRequest{
		ContractorID: chi.URLParam(r, "id"),
		Delta:        delta,
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceBody(balance))
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RefundPurchase(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.marketplace.RefundLead(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	body := balanceBody(result.Balance)
	body["purchase_id"] = result.PurchaseID
	body["job_id"] = result.JobID
	body["contractor_id"] = result.ContractorID
	body["refunded"] = money.FormatMinor(result.RefundedAmount)
	body["refunded_minor"] = result.RefundedAmount
	respondJSON(w, http.StatusOK, body)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reconcile.Reconcile(r.Context())
	if err != nil {
		h.logger.Error("reconcile failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if row.Difference == 0 {
			continue
		}
		normalized = append(normalized, driftBody(row))
	}
	respondJSON(w, http.StatusOK, normalized)
}

// CheckBalance reports one contractor's drift, zero included.
func (h *Handler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	drift, err := h.credits.CheckBalance(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, driftBody(drift))
}

func driftBody(row store.BalanceDrift) map[string]any {
	return map[string]any{
		"contractor_id":  row.ContractorID,
		"ledger_sum":     money.FormatMinor(row.LedgerSum),
		"stored_balance": money.FormatMinor(row.StoredBalance),
		"difference":     money.FormatMinor(row.Difference),
	}
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("audit list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
