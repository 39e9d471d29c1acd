package handlers

import (
	"net/http"

	"leadmarket/internal/middleware"
	"leadmarket/internal/money"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.credits.Balance(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	body := balanceBody(account.CreditBalance)
	body["contractor_id"] = account.ID
	body["display_name"] = account.DisplayName
	respondJSON(w, http.StatusOK, body)
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	entries, err := h.credits.Ledger(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	normalized := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		reference := ""
		if entry.ReferenceID != nil {
			reference = *entry.ReferenceID
		}
		normalized = append(normalized, map[string]any{
			"id":           entry.ID,
			"kind":         entry.Kind,
			"amount":       money.FormatMinor(entry.Amount),
			"amount_minor": entry.Amount,
			"reference_id": reference,
			"description":  entry.Description,
			"created_at":   entry.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	purchases, err := h.marketplace.PurchasesFor(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}
