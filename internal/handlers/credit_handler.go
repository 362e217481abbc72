package handlers

import (
	"errors"
	"net/http"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type CreditHandler struct {
	Service *services.CreditService
	Logger  ErrorLogger
}

func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	bal, err := h.Service.Balance(r.Context(), p.WorkspaceID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *CreditHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.Service.Ledger(r.Context(), p.WorkspaceID, limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *CreditHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Credits int64 `json:"credits" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.Service.Checkout(r.Context(), p.WorkspaceID, req.Credits)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *CreditHandler) GetAutoRecharge(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	settings, err := h.Service.AutoRecharge(r.Context(), p.WorkspaceID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.AutoRechargeSettings{WorkspaceID: p.WorkspaceID})
		return
	}
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *CreditHandler) PutAutoRecharge(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var in models.AutoRechargeSettings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := h.Service.UpsertAutoRecharge(r.Context(), p.WorkspaceID, in)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
