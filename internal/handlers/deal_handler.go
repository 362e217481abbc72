package handlers

import (
	"net/http"

	"leadgenBack/internal/services"
)

// DealBoardHandler serves the pipeline board on top of the deal CRUD routes.
type DealBoardHandler struct {
	Service *services.DealService
	Logger  ErrorLogger
}

func (h *DealBoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	board, err := h.Service.Board(r.Context(), p.WorkspaceID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *DealBoardHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Stage string `json:"stage" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.MoveStage(r.Context(), p.WorkspaceID, getParam(r, "id"), req.Stage); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
