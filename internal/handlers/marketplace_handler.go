package handlers

import (
	"net/http"

	"leadgenBack/internal/repositories"
	"leadgenBack/internal/services"
)

type MarketplaceHandler struct {
	Service *services.MarketplaceService
	Logger  ErrorLogger
}

func (h *MarketplaceHandler) Browse(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minIntent, err := parseIntQuery(r, "min_intent")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	listings, err := h.Service.Browse(r.Context(), repositories.ListingFilter{
		Seniority:      q.Get("seniority"),
		Country:        q.Get("country"),
		MinIntentScore: minIntent,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *MarketplaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		LeadID       string `json:"lead_id" validate:"required"`
		PriceCredits int64  `json:"price_credits" validate:"gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	listing, err := h.Service.List(r.Context(), p.WorkspaceID, req.LeadID, req.PriceCredits)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *MarketplaceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.Service.Withdraw(r.Context(), p.WorkspaceID, getParam(r, "id")); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MarketplaceHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	purchase, err := h.Service.Purchase(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}
