package handlers

import (
	"net/http"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type SegmentHandler struct {
	Service *services.SegmentService
	Logger  ErrorLogger
}

func (h *SegmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var seg models.Segment
	if err := decodeJSON(w, r, &seg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.Service.Create(r.Context(), p.WorkspaceID, seg)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	segments, err := h.Service.List(r.Context(), p.WorkspaceID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	seg, err := h.Service.Get(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func (h *SegmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var seg models.Segment
	if err := decodeJSON(w, r, &seg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seg.ID = getParam(r, "id")
	updated, err := h.Service.Update(r.Context(), p.WorkspaceID, seg)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SegmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *SegmentHandler) Pull(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	jobID, err := h.Service.PullNow(r.Context(), p.WorkspaceID, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}
