package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/config"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/interval"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
)

const minUnlockReason = 3

// ApprovalService drives the weekly PENDING/APPROVED state machine. While
// a week is PENDING its computed minutes are recomputed from sessions on
// every read; approval freezes the numbers until an explicit unlock.
type ApprovalService struct {
	Config    config.Config
	Identity  IdentityService
	Sessions  repository.SessionStore
	Approvals repository.ApprovalStore
	Audit     repository.AuditLogStore
	Logger    *slog.Logger

	Now func() time.Time
}

type DayDetail struct {
	Date     string
	Computed int
	Override *int
	Final    int
}

type WeekDetail struct {
	Worker          *domain.Worker
	WeekStart       time.Time
	WeekEnd         time.Time
	Status          domain.ApprovalStatus
	Days            []DayDetail
	ComputedMinutes int
	FinalMinutes    int
	Approval        *domain.WeeklyApproval
}

func (s ApprovalService) Adjust(ctx context.Context, workerRef string, weekOf time.Time, patch domain.DayOverridePatch, reason string, actor domain.Actor) (*domain.WeeklyApproval, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	worker, aliases, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	weekStart := interval.WeekStart(weekOf, s.Config.Location)

	existing, err := s.getWeek(ctx, worker.ID, weekStart)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == domain.ApprovalApproved {
		return nil, domain.Forbiddenf("week is approved; unlock first")
	}

	days, computed, err := s.recomputeWeek(ctx, aliases, weekStart)
	if err != nil {
		return nil, err
	}

	overrides := domain.DayOverrides{}
	if existing != nil {
		for k, v := range existing.Overrides {
			overrides[k] = v
		}
	}
	if err := applyPatch(overrides, patch, weekStart); err != nil {
		return nil, err
	}

	final := finalMinutes(days, overrides, weekStart)

	approval, err := s.Approvals.SavePending(ctx, repository.SavePendingParams{
		WorkerID:        worker.ID,
		WeekStart:       weekStart,
		WeekEnd:         interval.WeekEnd(weekStart),
		ComputedMinutes: computed,
		Overrides:       overrides,
		FinalMinutes:    final,
		Reason:          reason,
	})
	if err != nil {
		if errors.Is(err, repository.ErrWeekApproved) {
			return nil, domain.Forbiddenf("week is approved; unlock first")
		}
		return nil, err
	}
	s.audit(ctx, "weekly.adjust", &worker.ID, fmt.Sprintf("week %s final %d min: %s", weekStart.Format("2006-01-02"), final, reason), actor)
	return approval, nil
}

func (s ApprovalService) Approve(ctx context.Context, workerRef string, weekOf time.Time, reason string, actor domain.Actor) (*domain.WeeklyApproval, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	worker, aliases, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	weekStart := interval.WeekStart(weekOf, s.Config.Location)

	// One final recompute at the freeze point; downstream payroll reads
	// finalMinutes and never goes back to raw sessions for this week.
	days, computed, err := s.recomputeWeek(ctx, aliases, weekStart)
	if err != nil {
		return nil, err
	}

	approval, err := s.Approvals.Approve(ctx, repository.ApproveParams{
		WorkerID:        worker.ID,
		WeekStart:       weekStart,
		WeekEnd:         interval.WeekEnd(weekStart),
		ComputedMinutes: computed,
		Finalize: func(overrides domain.DayOverrides) int {
			return finalMinutes(days, overrides, weekStart)
		},
		Reason:        reason,
		ApproverID:    actor.ID,
		ApproverEmail: actor.Email,
		ApprovedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrWeekApproved) {
			return nil, domain.Forbiddenf("week is already approved")
		}
		return nil, err
	}
	s.audit(ctx, "weekly.approve", &worker.ID, fmt.Sprintf("week %s final %d min: %s", weekStart.Format("2006-01-02"), approval.FinalMinutes, reason), actor)
	return approval, nil
}

func (s ApprovalService) Unlock(ctx context.Context, workerRef string, weekOf time.Time, reason string, actor domain.Actor) (*domain.WeeklyApproval, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(reason)) < minUnlockReason {
		return nil, domain.Forbiddenf("unlock reason must be at least %d characters", minUnlockReason)
	}
	worker, _, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	weekStart := interval.WeekStart(weekOf, s.Config.Location)

	approval, err := s.Approvals.Unlock(ctx, worker.ID, weekStart, reason, actor)
	if err != nil {
		if errors.Is(err, repository.ErrWeekNotApproved) {
			return nil, domain.Validationf("week is not approved")
		}
		return nil, err
	}
	s.audit(ctx, "weekly.unlock", &worker.ID, fmt.Sprintf("week %s unlocked: %s", weekStart.Format("2006-01-02"), reason), actor)
	return approval, nil
}

func (s ApprovalService) Queue(ctx context.Context, search string, status domain.ApprovalStatus) ([]domain.WeeklyApproval, error) {
	switch status {
	case "", domain.ApprovalPending, domain.ApprovalApproved:
	default:
		return nil, domain.Validationf("status must be PENDING or APPROVED")
	}
	return s.Approvals.List(ctx, repository.ApprovalFilter{Search: search, Status: status})
}

// WeekDetail renders one worker-week. A PENDING week recomputes from
// sessions; an APPROVED week reports the frozen totals.
func (s ApprovalService) WeekDetail(ctx context.Context, workerRef string, weekOf time.Time) (*WeekDetail, error) {
	worker, aliases, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	weekStart := interval.WeekStart(weekOf, s.Config.Location)

	existing, err := s.getWeek(ctx, worker.ID, weekStart)
	if err != nil {
		return nil, err
	}

	detail := &WeekDetail{
		Worker:    worker,
		WeekStart: weekStart,
		WeekEnd:   interval.WeekEnd(weekStart),
		Status:    domain.ApprovalPending,
		Approval:  existing,
	}

	days, computed, err := s.recomputeWeek(ctx, aliases, weekStart)
	if err != nil {
		return nil, err
	}

	var overrides domain.DayOverrides
	if existing != nil {
		overrides = existing.Overrides
	}
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format("2006-01-02")
		d := DayDetail{Date: date, Computed: days[date], Final: days[date]}
		if v, ok := overrides[date]; ok {
			ov := v
			d.Override = &ov
			d.Final = v
		}
		detail.Days = append(detail.Days, d)
		detail.FinalMinutes += d.Final
	}
	detail.ComputedMinutes = computed

	if existing != nil && existing.Status == domain.ApprovalApproved {
		detail.Status = domain.ApprovalApproved
		detail.ComputedMinutes = existing.ComputedMinutes
		detail.FinalMinutes = existing.FinalMinutes
	}
	return detail, nil
}

func (s ApprovalService) recomputeWeek(ctx context.Context, aliases domain.WorkerAliasSet, weekStart time.Time) (map[string]int, int, error) {
	// Padding absorbs the zone offset of the UTC start_at column.
	from := weekStart.AddDate(0, 0, -1)
	to := weekStart.AddDate(0, 0, 8)
	sessions, err := s.Sessions.ListRange(ctx, aliases, from, to)
	if err != nil {
		return nil, 0, err
	}
	days, total := interval.WeekMinutes(sessions, weekStart, s.Config.Location)
	return days, total, nil
}

func (s ApprovalService) getWeek(ctx context.Context, workerID int64, weekStart time.Time) (*domain.WeeklyApproval, error) {
	approval, err := s.Approvals.GetWeek(ctx, workerID, weekStart)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return approval, nil
}

func (s ApprovalService) audit(ctx context.Context, action string, workerID *int64, detail string, actor domain.Actor) {
	if s.Audit == nil {
		return
	}
	err := s.Audit.Record(ctx, repository.AuditEntryInput{
		Action:     action,
		WorkerID:   workerID,
		Detail:     detail,
		ActorEmail: actor.Email,
		Timestamp:  s.now(),
	})
	if err != nil {
		s.logger().Error("audit record failed", "action", action, "err", err)
	}
}

func (s ApprovalService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().In(s.Config.Location)
}

func (s ApprovalService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func requireApprover(actor domain.Actor) error {
	if strings.TrimSpace(actor.Email) == "" {
		return domain.Validationf("acting user email is required")
	}
	if !actor.CanApprove() {
		return domain.Forbiddenf("requires admin or hr role")
	}
	return nil
}

func applyPatch(overrides domain.DayOverrides, patch domain.DayOverridePatch, weekStart time.Time) error {
	weekEnd := weekStart.AddDate(0, 0, 7)
	for date, v := range patch {
		d, err := time.ParseInLocation("2006-01-02", date, weekStart.Location())
		if err != nil {
			return domain.Validationf("invalid adjustment date %q", date)
		}
		if d.Before(weekStart) || !d.Before(weekEnd) {
			return domain.Validationf("adjustment date %s is outside the week", date)
		}
		if v == nil {
			delete(overrides, date)
			continue
		}
		if *v < 0 {
			return domain.Validationf("override minutes must be >= 0")
		}
		overrides[date] = *v
	}
	return nil
}

func finalMinutes(days map[string]int, overrides domain.DayOverrides, weekStart time.Time) int {
	total := 0
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format("2006-01-02")
		if v, ok := overrides[date]; ok {
			total += v
			continue
		}
		total += days[date]
	}
	return total
}
