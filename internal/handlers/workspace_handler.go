package handlers

import (
	"net/http"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type WorkspaceHandler struct {
	Service *services.WorkspaceService
	Logger  ErrorLogger
}

func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ws, err := h.Service.Get(r.Context(), p.WorkspaceID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// RotateAPIKey issues a new ingestion key. Only owners may rotate it and the key is
// shown once.
func (h *WorkspaceHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if p.Role != models.RoleOwner && !p.IsAdmin() {
		writeServiceError(w, h.Logger, models.ErrForbidden)
		return
	}
	key, err := h.Service.RotateAPIKey(r.Context(), p.WorkspaceID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"api_key": key})
}

// AttachReferrer links the workspace to the partner whose referral link it used.
func (h *WorkspaceHandler) AttachReferrer(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		PartnerID string `json:"partner_id" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.AttachReferrer(r.Context(), p.WorkspaceID, req.PartnerID); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
