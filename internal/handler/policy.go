package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/config"
	"github.com/go-chi/chi/v5"
)

// PolicyHandler reports the effective work policy so admin tooling shows
// the same rules the services enforce.
type PolicyHandler struct {
	Config config.Config
}

func (h PolicyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/policy", h.get)
}

func (h PolicyHandler) get(w http.ResponseWriter, r *http.Request) {
	var workDays []int
	for d, ok := range h.Config.WorkDays {
		if ok {
			workDays = append(workDays, int(d))
		}
	}
	sort.Ints(workDays)

	writeJSON(w, http.StatusOK, map[string]any{
		"timezone":                 h.Config.Location.String(),
		"workdayCutoff":            clockString(h.Config.CutoffHour, h.Config.CutoffMinute),
		"workDays":                 workDays,
		"overtimeThresholdMinutes": h.Config.OvertimeThresholdMn,
		"currency":                 h.Config.DefaultCurrency,
	})
}

func clockString(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}
