package handlers

import (
	"context"
	"net/http"

	"leadgenBack/internal/models"
)

// CRUDService is the workspace-scoped shape shared by agents, campaigns, contacts,
// companies and deals.
type CRUDService[T any] interface {
	Create(ctx context.Context, workspaceID string, v T) (T, error)
	Get(ctx context.Context, workspaceID, id string) (T, error)
	List(ctx context.Context, workspaceID string, limit, offset int) ([]T, error)
	Update(ctx context.Context, workspaceID string, v T) (T, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type CRUDHandler[T any] struct {
	Service CRUDService[T]
	// SetID copies the path id into a decoded body before Update.
	SetID  func(v *T, id string)
	Logger ErrorLogger
}

func (h *CRUDHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.Service.Create(r.Context(), p.WorkspaceID, v)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CRUDHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Service.List(r.Context(), p.WorkspaceID, limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CRUDHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	item, err := h.Service.Get(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CRUDHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.SetID(&v, getParam(r, "id"))
	updated, err := h.Service.Update(r.Context(), p.WorkspaceID, v)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CRUDHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
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

func NewAgentHandler(s CRUDService[models.Agent], logger ErrorLogger) *CRUDHandler[models.Agent] {
	return &CRUDHandler[models.Agent]{Service: s, Logger: logger, SetID: func(v *models.Agent, id string) { v.ID = id }}
}

func NewCampaignHandler(s CRUDService[models.Campaign], logger ErrorLogger) *CRUDHandler[models.Campaign] {
	return &CRUDHandler[models.Campaign]{Service: s, Logger: logger, SetID: func(v *models.Campaign, id string) { v.ID = id }}
}

func NewContactHandler(s CRUDService[models.Contact], logger ErrorLogger) *CRUDHandler[models.Contact] {
	return &CRUDHandler[models.Contact]{Service: s, Logger: logger, SetID: func(v *models.Contact, id string) { v.ID = id }}
}

func NewCompanyHandler(s CRUDService[models.Company], logger ErrorLogger) *CRUDHandler[models.Company] {
	return &CRUDHandler[models.Company]{Service: s, Logger: logger, SetID: func(v *models.Company, id string) { v.ID = id }}
}

func NewDealHandler(s CRUDService[models.Deal], logger ErrorLogger) *CRUDHandler[models.Deal] {
	return &CRUDHandler[models.Deal]{Service: s, Logger: logger, SetID: func(v *models.Deal, id string) { v.ID = id }}
}
