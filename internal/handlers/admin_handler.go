package handlers

import (
	"net/http"
	"time"

	"leadgenBack/internal/payouts"
	"leadgenBack/internal/services"
)

// AdminHandler serves partner payouts and operations endpoints. Routes are mounted
// behind the admin role check.
type AdminHandler struct {
	Payouts *payouts.Service
	Leads   *services.LeadService
	Health  *services.HealthService
	Logger  ErrorLogger

	now func() time.Time
}

func (h *AdminHandler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var in payouts.NewPartner
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	partner, err := h.Payouts.CreatePartner(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (h *AdminHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	partners, err := h.Payouts.ListPartners(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

func (h *AdminHandler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	commissions, err := h.Payouts.ListCommissions(r.Context(), getParam(r, "id"), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, commissions)
}

func (h *AdminHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.Payouts.ListPayouts(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RunPayouts triggers the weekly run out of schedule. Payouts already created for the
// current week are reported as duplicates.
func (h *AdminHandler) RunPayouts(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Payouts.RunWeeklyPayouts(r.Context(), h.clock())
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DedupStats reports skipped duplicates by source; ?workspace_id= narrows it to one
// workspace and ?days= sets the window.
func (h *AdminHandler) DedupStats(w http.ResponseWriter, r *http.Request) {
	window, err := parseDays(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.Leads.DedupStats(r.Context(), r.URL.Query().Get("workspace_id"), window)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) HealthReport(w http.ResponseWriter, r *http.Request) {
	report := h.Health.Report(r.Context())
	status := http.StatusOK
	if report.Status != services.HealthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Liveness is the public /health probe.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": services.HealthOK})
}

func (h *AdminHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
