package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// WorkerHandler is the staff registry admin surface.
type WorkerHandler struct {
	Repo repository.WorkerRepository
}

func (h WorkerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/workers", h.list)
	r.Post("/admin/workers", h.upsert)
}

func (h WorkerHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, wk := range items {
		resp = append(resp, workerPayload(wk))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h WorkerHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       *int64 `json:"id"`
		Code     string `json:"code"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Type     string `json:"type"`
		Password string `json:"password"`
		Active   *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code and name are required")
		return
	}
	role := domain.UserRole(req.Role)
	if role == "" {
		role = domain.RoleStaff
	}
	if role != domain.RoleAdmin && role != domain.RoleHR && role != domain.RoleStaff {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	typ := domain.StaffType(req.Type)
	if typ == "" {
		typ = domain.StaffField
	}
	if typ != domain.StaffField && typ != domain.StaffOffice {
		writeError(w, http.StatusBadRequest, "invalid staff type")
		return
	}

	var hash *string
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		s := string(hashed)
		hash = &s
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	worker, err := h.Repo.Upsert(r.Context(), repository.UpsertWorkerParams{
		ID:           req.ID,
		Code:         req.Code,
		Name:         req.Name,
		Email:        req.Email,
		Role:         role,
		Type:         typ,
		PasswordHash: hash,
		Active:       active,
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			writeError(w, http.StatusConflict, "worker code or email already exists")
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "worker not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if req.ID == nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, workerPayload(*worker))
}

func workerPayload(w domain.Worker) map[string]any {
	return map[string]any{
		"id":           w.ID,
		"code":         w.Code,
		"name":         w.Name,
		"email":        w.Email,
		"role":         string(w.Role),
		"type":         string(w.Type),
		"rate":         moneyOrNil(w.Rate),
		"trainingRate": moneyOrNil(w.TrainingRate),
		"mileageRate":  moneyOrNil(w.MileageRate),
		"active":       w.Active,
	}
}
