package handlers

import (
	"net/http"

	"leadgenBack/internal/models"
	"leadgenBack/internal/services"
)

type TicketHandler struct {
	Service *services.TicketService
	Logger  ErrorLogger
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Subject  string `json:"subject" validate:"required,max=200"`
		Body     string `json:"body" validate:"required"`
		Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := h.Service.Create(r.Context(), p, models.SupportTicket{
		Subject:  req.Subject,
		Body:     req.Body,
		Priority: req.Priority,
	})
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tickets, err := h.Service.ListMine(r.Context(), p, limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ticket, err := h.Service.Get(r.Context(), p, getParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ListAll is the admin queue, optionally filtered by ?status=.
func (h *TicketHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tickets, err := h.Service.ListAll(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := h.Service.Reply(r.Context(), p, getParam(r, "id"), req.Body)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (h *TicketHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status" validate:"required,oneof=open pending closed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.ChangeStatus(r.Context(), getParam(r, "id"), req.Status); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
