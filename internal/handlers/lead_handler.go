package handlers

import (
	"fmt"
	"net/http"
	"time"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type LeadHandler struct {
	Service *services.LeadService
	Logger  ErrorLogger
}

// Create stores a lead entered from the dashboard.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.LeadSourceManual)
}

// Ingest is the public API-key endpoint used by forms and integrations.
func (h *LeadHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.LeadSourceAPI)
}

func (h *LeadHandler) create(w http.ResponseWriter, r *http.Request, source string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var lead models.Lead
	if err := decodeJSON(w, r, &lead); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.Service.Create(r.Context(), p.WorkspaceID, lead, source)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	f, err := leadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, err := h.Service.List(r.Context(), p.WorkspaceID, f)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	f, err := leadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := h.Service.ExportXLSX(r.Context(), p.WorkspaceID, f)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	name := fmt.Sprintf("leads-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	lead, err := h.Service.Get(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var lead models.Lead
	if err := decodeJSON(w, r, &lead); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lead.ID = getParam(r, "id")
	updated, err := h.Service.Update(r.Context(), p.WorkspaceID, lead)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.UpdateStatus(r.Context(), p.WorkspaceID, getParam(r, "id"), req.Status); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) Assign(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		AgentID *string `json:"agent_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.Assign(r.Context(), p.WorkspaceID, getParam(r, "id"), req.AgentID); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) Rescore(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	lead, err := h.Service.Rescore(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func leadFilter(r *http.Request) (models.LeadFilter, error) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		return models.LeadFilter{}, err
	}
	minIntent, err := parseIntQuery(r, "min_intent")
	if err != nil {
		return models.LeadFilter{}, err
	}
	q := r.URL.Query()
	return models.LeadFilter{
		Query:          q.Get("q"),
		Status:         q.Get("status"),
		OwnerAgentID:   q.Get("owner"),
		MinIntentScore: minIntent,
		Limit:          limit,
		Offset:         offset,
	}, nil
}
