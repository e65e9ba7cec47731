package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
	"github.com/go-chi/chi/v5"
)

// AuditHandler exposes the trail of sensitive admin actions: approvals,
// unlocks, payroll generations.
type AuditHandler struct {
	Repo repository.AuditLogRepository
}

func (h AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/audit", h.list)
}

func (h AuditHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Repo.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, map[string]any{
			"id":         e.ID,
			"action":     e.Action,
			"workerId":   e.WorkerID,
			"detail":     e.Detail,
			"actorEmail": e.ActorEmail,
			"loggedAt":   e.LoggedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
