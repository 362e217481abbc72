package handlers

import (
	"net/http"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type ContentHandler struct {
	Service *services.ContentService
	Logger  ErrorLogger
}

func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req models.ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	draft, err := h.Service.Generate(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	drafts, err := h.Service.List(r.Context(), p.WorkspaceID, r.URL.Query().Get("kind"), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), p.WorkspaceID, getParam(r, "id")); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
