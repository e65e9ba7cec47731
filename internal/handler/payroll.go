package handler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/server/authctx"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

type PayrollHandler struct {
	Payroll  service.PayrollService
	Location *time.Location
	Logger   *slog.Logger
}

func (h PayrollHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payroll/generate", h.generate)
	r.Get("/payroll/runs", h.listRuns)
	r.Get("/payroll/runs/{id}", h.getRun)
	r.Get("/payroll/runs/{id}/export", h.export)
	r.Post("/payroll/rates/upsert", h.upsertRates)
}

func (h PayrollHandler) generate(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	from, err := time.ParseInLocation(dateLayout, req.From, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := time.ParseInLocation(dateLayout, req.To, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	run, err := h.Payroll.Generate(r.Context(), from, to, *actor)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, runPayload(*run, true))
}

func (h PayrollHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Payroll.ListRuns(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	resp := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runPayload(run, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h PayrollHandler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Payroll.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, runPayload(*run, true))
}

func (h PayrollHandler) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	run, err := h.Payroll.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}

	filename := fmt.Sprintf("payroll_%s_%s", run.PeriodStart.Format("20060102"), run.PeriodEnd.Format("20060102"))
	switch format {
	case "csv":
		data, err := exportPayrollCSV(run)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
		_, _ = w.Write(data)
	case "xlsx", "excel":
		data, err := exportPayrollXLSX(run)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
	}
}

func (h PayrollHandler) upsertRates(w http.ResponseWriter, r *http.Request) {
	actor := authctx.FromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		WorkerRef    string `json:"workerRef"`
		Rate         *int64 `json:"rate"`
		TrainingRate *int64 `json:"trainingRate"`
		MileageRate  *int64 `json:"mileageRate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.WorkerRef == "" {
		writeError(w, http.StatusBadRequest, "workerRef is required")
		return
	}
	worker, err := h.Payroll.UpsertRates(r.Context(), req.WorkerRef, req.Rate, req.TrainingRate, req.MileageRate, *actor)
	if err != nil {
		writeDomainError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           worker.ID,
		"code":         worker.Code,
		"name":         worker.Name,
		"rate":         moneyOrNil(worker.Rate),
		"trainingRate": moneyOrNil(worker.TrainingRate),
		"mileageRate":  moneyOrNil(worker.MileageRate),
	})
}

func runPayload(run domain.PayrollRun, withRows bool) map[string]any {
	resp := map[string]any{
		"id":          run.ID,
		"periodStart": run.PeriodStart.Format("2006-01-02"),
		"periodEnd":   run.PeriodEnd.Format("2006-01-02"),
		"generatedBy": run.GeneratedBy,
		"totalPay":    run.TotalPay.Amount,
		"currency":    run.TotalPay.Currency,
		"warnings":    run.Warnings,
		"createdAt":   run.CreatedAt.Format(time.RFC3339),
	}
	if withRows {
		rows := make([]map[string]any, 0, len(run.Rows))
		for _, row := range run.Rows {
			rows = append(rows, map[string]any{
				"workerId":        row.WorkerID,
				"workerName":      row.WorkerName,
				"staffType":       string(row.StaffType),
				"rate":            row.Rate.Amount,
				"regularMinutes":  row.RegularMinutes,
				"overtimeMinutes": row.OvertimeMinutes,
				"regularPay":      row.RegularPay.Amount,
				"overtimePay":     row.OvertimePay.Amount,
				"totalPay":        row.TotalPay.Amount,
			})
		}
		resp["rows"] = rows
	}
	return resp
}

func moneyOrNil(m *domain.Money) any {
	if m == nil {
		return nil
	}
	return m.Amount
}

var payrollExportHeader = []string{"worker_id", "worker_name", "staff_type", "rate", "regular_minutes", "overtime_minutes", "regular_pay", "overtime_pay", "total_pay"}

func exportPayrollCSV(run *domain.PayrollRun) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(payrollExportHeader)
	for _, row := range run.Rows {
		_ = w.Write([]string{
			strconv.FormatInt(row.WorkerID, 10),
			row.WorkerName,
			string(row.StaffType),
			strconv.FormatInt(row.Rate.Amount, 10),
			strconv.Itoa(row.RegularMinutes),
			strconv.Itoa(row.OvertimeMinutes),
			strconv.FormatInt(row.RegularPay.Amount, 10),
			strconv.FormatInt(row.OvertimePay.Amount, 10),
			strconv.FormatInt(row.TotalPay.Amount, 10),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportPayrollXLSX(run *domain.PayrollRun) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Payroll"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := []string{"Worker ID", "Worker Name", "Staff Type", "Rate", "Regular Minutes", "Overtime Minutes", "Regular Pay", "Overtime Pay", "Total Pay"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, row := range run.Rows {
		values := []any{
			row.WorkerID,
			row.WorkerName,
			string(row.StaffType),
			row.Rate.Amount,
			row.RegularMinutes,
			row.OvertimeMinutes,
			row.RegularPay.Amount,
			row.OvertimePay.Amount,
			row.TotalPay.Amount,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 12)
	_ = f.SetColWidth(sheet, "D", "I", 16)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "I1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
