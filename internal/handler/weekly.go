package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/server/authctx"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/service"
	"github.com/go-chi/chi/v5"
)

// WeeklyHandler exposes the approval queue and the adjust/approve/unlock
// transitions to admin and HR users.
type WeeklyHandler struct {
	Approvals service.ApprovalService
	Location  *time.Location
	Logger    *slog.Logger
}

func (h WeeklyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/weekly", h.queue)
	r.Get("/admin/weekly/{worker}", h.detail)
	r.Post("/admin/weekly/{worker}/adjust", h.adjust)
	r.Post("/admin/weekly/{worker}/approve", h.approve)
	r.Post("/admin/weekly/{worker}/unlock", h.unlock)
}

func (h WeeklyHandler) queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.Approvals.Queue(r.Context(),
		r.URL.Query().Get("search"),
		domain.ApprovalStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, a := range items {
		resp = append(resp, approvalPayload(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h WeeklyHandler) detail(w http.ResponseWriter, r *http.Request) {
	week, err := h.weekQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid week")
		return
	}
	detail, err := h.Approvals.WeekDetail(r.Context(), chi.URLParam(r, "worker"), week)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	days := make([]map[string]any, 0, len(detail.Days))
	for _, d := range detail.Days {
		days = append(days, map[string]any{
			"date":     d.Date,
			"computed": d.Computed,
			"override": d.Override,
			"final":    d.Final,
		})
	}
	resp := map[string]any{
		"workerId":        detail.Worker.ID,
		"workerName":      detail.Worker.Name,
		"weekStart":       detail.WeekStart.Format("2006-01-02"),
		"weekEnd":         detail.WeekEnd.Format("2006-01-02"),
		"status":          string(detail.Status),
		"days":            days,
		"computedMinutes": detail.ComputedMinutes,
		"finalMinutes":    detail.FinalMinutes,
	}
	if detail.Approval != nil {
		resp["approval"] = approvalPayload(*detail.Approval)
	}
	writeJSON(w, http.StatusOK, resp)
}

type weeklyActionRequest struct {
	Week      string                  `json:"week"`
	Reason    string                  `json:"reason"`
	Overrides domain.DayOverridePatch `json:"overrides"`
}

func (h WeeklyHandler) adjust(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req weeklyActionRequest, week time.Time, actor domain.Actor) (*domain.WeeklyApproval, error) {
		return h.Approvals.Adjust(r.Context(), chi.URLParam(r, "worker"), week, req.Overrides, req.Reason, actor)
	})
}

func (h WeeklyHandler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req weeklyActionRequest, week time.Time, actor domain.Actor) (*domain.WeeklyApproval, error) {
		return h.Approvals.Approve(r.Context(), chi.URLParam(r, "worker"), week, req.Reason, actor)
	})
}

func (h WeeklyHandler) unlock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req weeklyActionRequest, week time.Time, actor domain.Actor) (*domain.WeeklyApproval, error) {
		return h.Approvals.Unlock(r.Context(), chi.URLParam(r, "worker"), week, req.Reason, actor)
	})
}

func (h WeeklyHandler) transition(w http.ResponseWriter, r *http.Request,
	do func(req weeklyActionRequest, week time.Time, actor domain.Actor) (*domain.WeeklyApproval, error)) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req weeklyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	week, err := time.ParseInLocation(dateLayout, req.Week, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be a date (2006-01-02)")
		return
	}
	approval, err := do(req, week, *actor)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalPayload(*approval))
}

func (h WeeklyHandler) weekQuery(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("week")
	if v == "" {
		return time.Now(), nil
	}
	// Week math runs on local civil days; parsing in UTC would put a
	// Sunday date on the previous local week.
	return time.ParseInLocation(dateLayout, v, h.Location)
}

func approvalPayload(a domain.WeeklyApproval) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"workerId":        a.WorkerID,
		"weekStart":       a.WeekStart.Format("2006-01-02"),
		"weekEnd":         a.WeekEnd.Format("2006-01-02"),
		"status":          string(a.Status),
		"computedMinutes": a.ComputedMinutes,
		"overrides":       a.Overrides,
		"finalMinutes":    a.FinalMinutes,
		"reason":          a.Reason,
		"approverId":      a.ApproverID,
		"approverEmail":   a.ApproverEmail,
		"approvedAt":      timeOrNil(a.ApprovedAt),
	}
}
