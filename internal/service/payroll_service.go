package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/config"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/interval"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
	"github.com/google/uuid"
)

// PayrollService converts reconciled minutes into an immutable run.
// Office-classified workers are paid their APPROVED weekly finalMinutes
// plus any visit minutes they separately logged; field-classified workers
// are paid reconciled visit minutes only, and only for completed visits.
type PayrollService struct {
	Config    config.Config
	Workers   repository.WorkerStore
	Sessions  repository.SessionStore
	Approvals repository.ApprovalStore
	Payroll   repository.PayrollStore
	Audit     repository.AuditLogStore
	Logger    *slog.Logger

	Now func() time.Time
}

func (s PayrollService) Generate(ctx context.Context, from, to time.Time, actor domain.Actor) (*domain.PayrollRun, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, domain.Validationf("from must be before to")
	}

	workers, err := s.Workers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	// Only visits whose parent context completed are payable.
	visitSessions, err := s.Sessions.ListVisitSessions(ctx, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1), true)
	if err != nil {
		return nil, err
	}

	run := &domain.PayrollRun{
		ID:            uuid.NewString(),
		PeriodStart:   from,
		PeriodEnd:     to,
		GeneratedBy:   actor.Email,
		GeneratedByID: actor.ID,
		TotalPay:      domain.Money{Currency: s.Config.DefaultCurrency},
		Warnings:      []string{},
	}

	// Each worker's computation is independent and side-effect-free; the
	// only write is the transactional persistence of the whole run below.
	for _, w := range workers {
		aliases := domain.NewWorkerAliasSet(w.ID, w.Code)
		minutes := s.visitMinutes(visitSessions, aliases, from, to)

		if w.Type == domain.StaffOffice {
			approved, err := s.Approvals.ListApproved(ctx, w.ID, from, to)
			if err != nil {
				return nil, err
			}
			// Unapproved weeks contribute nothing; they must not leak
			// into payroll silently.
			for _, a := range approved {
				minutes += a.FinalMinutes
			}
		}
		if minutes == 0 {
			continue
		}

		rate := int64(0)
		if w.Rate != nil {
			rate = w.Rate.Amount
		} else {
			run.Warnings = append(run.Warnings, fmt.Sprintf("no rate configured for %s (id %d); paid zero", w.Name, w.ID))
			s.logger().Warn("worker has no rate configured", "worker", w.ID)
		}

		row := buildRow(w, minutes, rate, s.Config.OvertimeThresholdMn, s.Config.DefaultCurrency)
		run.Rows = append(run.Rows, row)
		run.TotalPay.Amount += row.TotalPay.Amount
	}

	if err := s.Payroll.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if s.Audit != nil {
		_ = s.Audit.Record(ctx, repository.AuditEntryInput{
			Action:     "payroll.generate",
			Detail:     fmt.Sprintf("run %s for %s..%s, %d rows", run.ID, from.Format("2006-01-02"), to.Format("2006-01-02"), len(run.Rows)),
			ActorEmail: actor.Email,
			Timestamp:  s.now(),
		})
	}
	s.logger().Info("payroll run created", "run", run.ID, "rows", len(run.Rows), "warnings", len(run.Warnings))
	return run, nil
}

func (s PayrollService) ListRuns(ctx context.Context, limit int) ([]domain.PayrollRun, error) {
	return s.Payroll.ListRuns(ctx, limit)
}

func (s PayrollService) GetRun(ctx context.Context, id string) (*domain.PayrollRun, error) {
	run, err := s.Payroll.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("payroll run not found")
		}
		return nil, err
	}
	return run, nil
}

func (s PayrollService) UpsertRates(ctx context.Context, workerRef string, rate, trainingRate, mileageRate *int64, actor domain.Actor) (*domain.Worker, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	for _, v := range []*int64{rate, trainingRate, mileageRate} {
		if v != nil && *v < 0 {
			return nil, domain.Validationf("rates must be >= 0")
		}
	}
	worker, err := s.Workers.FindByIDOrCode(ctx, workerRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFoundf("worker not found")
		}
		return nil, err
	}
	return s.Workers.UpsertRates(ctx, worker.ID, money(rate, s.Config.DefaultCurrency),
		money(trainingRate, s.Config.DefaultCurrency), money(mileageRate, s.Config.DefaultCurrency))
}

// visitMinutes reconciles this worker's share of the period's completed
// visit sessions, day by local civil day.
func (s PayrollService) visitMinutes(all []domain.WorkSession, aliases domain.WorkerAliasSet, from, to time.Time) int {
	var mine []domain.WorkSession
	for _, sess := range all {
		if sess.WorkerID != nil && *sess.WorkerID == aliases.CanonicalID {
			mine = append(mine, sess)
			continue
		}
		if aliases.Contains(sess.WorkerRef) {
			mine = append(mine, sess)
		}
	}
	if len(mine) == 0 {
		return 0
	}
	loc := s.Config.Location
	total := 0
	for day := interval.CivilDate(from, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
		total += interval.DayMinutes(mine, day, loc)
	}
	return total
}

// buildRow splits minutes at the flat per-period overtime threshold:
// everything beyond it is paid at 1.5x the base rate. Rates are hourly in
// minor units; pay rounds to the nearest minor unit.
func buildRow(w domain.Worker, minutes int, rate int64, threshold int, currency string) domain.PayrollRow {
	regular := minutes
	overtime := 0
	if minutes > threshold {
		regular = threshold
		overtime = minutes - threshold
	}
	regularPay := (int64(regular)*rate + 30) / 60
	overtimePay := (int64(overtime)*rate*3 + 60) / 120

	return domain.PayrollRow{
		WorkerID:        w.ID,
		WorkerName:      w.Name,
		StaffType:       w.Type,
		Rate:            domain.Money{Amount: rate, Currency: currency},
		RegularMinutes:  regular,
		OvertimeMinutes: overtime,
		RegularPay:      domain.Money{Amount: regularPay, Currency: currency},
		OvertimePay:     domain.Money{Amount: overtimePay, Currency: currency},
		TotalPay:        domain.Money{Amount: regularPay + overtimePay, Currency: currency},
	}
}

func money(v *int64, currency string) *domain.Money {
	if v == nil {
		return nil
	}
	return &domain.Money{Amount: *v, Currency: currency}
}

func (s PayrollService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().In(s.Config.Location)
}

func (s PayrollService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
