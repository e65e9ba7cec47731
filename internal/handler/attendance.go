package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/server/authctx"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/service"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler struct {
	Sessions service.SessionService
	Location *time.Location
	Logger   *slog.Logger
}

func (h AttendanceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/attendance/status", h.status)
	r.Get("/attendance", h.list)
	r.Post("/attendance/checkin", h.checkIn)
	r.Post("/attendance/checkout", h.checkOut)
}

type geoPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

func (h AttendanceHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		WorkerRef   string     `json:"workerRef"`
		ContextID   string     `json:"contextId"`
		ContextKind string     `json:"contextKind"`
		ClientTime  *time.Time `json:"clientTime"`
		Origin      string     `json:"origin"`
		geoPayload
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	sess, err := h.Sessions.CheckIn(r.Context(), service.CheckInInput{
		WorkerRef:   workerRefOrSelf(req.WorkerRef, *actor),
		ContextID:   req.ContextID,
		ContextKind: domain.ContextKind(req.ContextKind),
		Geo:         service.GeoInput{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy},
		ClientTime:  req.ClientTime,
		Origin:      domain.OriginMedium(req.Origin),
	})
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(*sess))
}

func (h AttendanceHandler) checkOut(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		WorkerRef  string     `json:"workerRef"`
		ClientTime *time.Time `json:"clientTime"`
		geoPayload
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	closed, err := h.Sessions.CheckOut(r.Context(), service.CheckOutInput{
		WorkerRef:  workerRefOrSelf(req.WorkerRef, *actor),
		Geo:        service.GeoInput{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy},
		ClientTime: req.ClientTime,
	})
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": closed})
}

func (h AttendanceHandler) status(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	st, err := h.Sessions.Status(r.Context(), workerRefOrSelf(r.URL.Query().Get("worker"), *actor))
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	resp := map[string]any{
		"workerId": st.Worker.ID,
		"open":     st.Open,
	}
	if st.OpenSession != nil {
		resp["session"] = sessionPayload(*st.OpenSession)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h AttendanceHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	from, err := parseDateQuery(r, "from", h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseDateQuery(r, "to", h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	if from == nil || to == nil {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	view, err := h.Sessions.Attendance(r.Context(), workerRefOrSelf(r.URL.Query().Get("worker"), *actor), *from, *to)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}

	sessions := make([]map[string]any, 0, len(view.Sessions))
	for _, s := range view.Sessions {
		sessions = append(sessions, sessionPayload(s))
	}
	days := make([]map[string]any, 0, len(view.Days))
	for _, d := range view.Days {
		days = append(days, map[string]any{"date": d.Date, "minutes": d.Minutes})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workerId":     view.Worker.ID,
		"sessions":     sessions,
		"days":         days,
		"totalMinutes": view.TotalMinutes,
	})
}

func sessionPayload(s domain.WorkSession) map[string]any {
	flags := make([]string, 0, len(s.Flags))
	for _, f := range s.Flags {
		flags = append(flags, string(f))
	}
	return map[string]any{
		"id":          s.ID,
		"workerRef":   s.WorkerRef,
		"workerId":    s.WorkerID,
		"contextId":   s.ContextID,
		"contextKind": string(s.ContextKind),
		"startAt":     s.StartAt.Format(time.RFC3339),
		"endAt":       timeOrNil(s.EndAt),
		"origin":      string(s.Origin),
		"flags":       flags,
	}
}

// workerRefOrSelf lets staff omit the reference and act for themselves.
func workerRefOrSelf(ref string, actor domain.Actor) string {
	if ref != "" {
		return ref
	}
	return strconv.FormatInt(actor.ID, 10)
}
