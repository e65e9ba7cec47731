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
)

// SessionService owns the check-in/check-out lifecycle: one open session
// per context, a double-time guard across contexts, and opportunistic
// auto-close of stale sessions whenever a read touches them.
type SessionService struct {
	Config    config.Config
	Identity  IdentityService
	Sessions  repository.SessionStore
	Approvals repository.ApprovalStore
	Logger    *slog.Logger

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

type GeoInput struct {
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
}

type CheckInInput struct {
	WorkerRef   string
	ContextID   string
	ContextKind domain.ContextKind
	Geo         GeoInput
	ClientTime  *time.Time
	Origin      domain.OriginMedium
}

type CheckOutInput struct {
	WorkerRef  string
	Geo        GeoInput
	ClientTime *time.Time
}

type WorkerStatus struct {
	Worker      *domain.Worker
	Open        bool
	OpenSession *domain.WorkSession
}

type DayTotal struct {
	Date    string
	Minutes int
}

type AttendanceView struct {
	Worker       *domain.Worker
	Sessions     []domain.WorkSession
	Days         []DayTotal
	TotalMinutes int
}

func (s SessionService) CheckIn(ctx context.Context, in CheckInInput) (*domain.WorkSession, error) {
	geo, err := validateGeo(in.Geo)
	if err != nil {
		return nil, err
	}
	if in.ContextKind != domain.ContextVisit && in.ContextKind != domain.ContextOffice {
		return nil, domain.Validationf("contextKind must be visit or office")
	}

	worker, aliases, err := s.Identity.Resolve(ctx, in.WorkerRef)
	if err != nil {
		return nil, err
	}

	contextID := in.ContextID
	switch in.ContextKind {
	case domain.ContextVisit:
		if contextID == "" {
			return nil, domain.Validationf("contextId is required for visit check-in")
		}
		wc, err := s.Sessions.GetContext(ctx, contextID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.Validationf("unknown visit context %s", contextID)
			}
			return nil, err
		}
		if wc.Kind != domain.ContextVisit {
			return nil, domain.Validationf("context %s is not a visit", contextID)
		}
		if wc.Status == domain.ContextCancelled {
			return nil, domain.Validationf("visit %s is cancelled", contextID)
		}
	case domain.ContextOffice:
		// One office-attendance stream per worker.
		if contextID == "" {
			contextID = fmt.Sprintf("office-%d", worker.ID)
		}
	}

	startAt := s.effectiveTime(in.ClientTime)

	if err := s.ensureWeekUnlocked(ctx, worker.ID, startAt); err != nil {
		return nil, err
	}

	open, err := s.sweepOpen(ctx, aliases)
	if err != nil {
		return nil, err
	}
	for _, o := range open {
		if o.ContextID == contextID {
			return nil, domain.Validationf("already checked in")
		}
		return nil, domain.Forbiddenf("worker has an open %s session; check out first", o.ContextKind)
	}

	sess, err := s.Sessions.Open(ctx, repository.OpenSessionParams{
		WorkerRef:   in.WorkerRef,
		WorkerID:    worker.ID,
		ContextID:   contextID,
		ContextKind: in.ContextKind,
		StartAt:     startAt,
		Origin:      origin(in.Origin),
		Geo:         geo,
	})
	if err != nil {
		// The racing writer already succeeded; surfaced as retryable.
		if repository.IsDuplicate(err) {
			return nil, domain.Validationf("already checked in")
		}
		return nil, err
	}
	s.logger().Info("session opened", "worker", worker.ID, "context", contextID, "start", startAt)
	return sess, nil
}

func (s SessionService) CheckOut(ctx context.Context, in CheckOutInput) (int, error) {
	geo, err := validateGeo(in.Geo)
	if err != nil {
		return 0, err
	}
	worker, aliases, err := s.Identity.Resolve(ctx, in.WorkerRef)
	if err != nil {
		return 0, err
	}

	open, err := s.sweepOpen(ctx, aliases)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, domain.Validationf("no open session to check out")
	}

	// Most recent open session decides the context; every open session in
	// that context closes at the same instant to stop further drift.
	latest := open[len(open)-1]

	endAt := s.effectiveTime(in.ClientTime)
	if err := s.ensureWeekUnlocked(ctx, worker.ID, endAt); err != nil {
		return 0, err
	}
	// Overnight wraparound: a checkout clock reading before the check-in
	// belongs to the next civil day, never a negative span. A reading
	// still earlier than the check-in after the roll is a bad client
	// clock, not an overnight shift.
	if endAt.Before(latest.StartAt) {
		endAt = endAt.AddDate(0, 0, 1)
		if endAt.Before(latest.StartAt) {
			return 0, domain.Validationf("checkout time is before the session start")
		}
	}

	n, err := s.Sessions.CloseOpen(ctx, aliases, latest.ContextID, endAt, &geo)
	if err != nil {
		return 0, err
	}
	if n > 1 {
		s.logger().Warn("closed multiple open sessions in one context", "worker", worker.ID, "context", latest.ContextID, "count", n)
	}
	return n, nil
}

func (s SessionService) Status(ctx context.Context, workerRef string) (*WorkerStatus, error) {
	worker, aliases, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	open, err := s.sweepOpen(ctx, aliases)
	if err != nil {
		return nil, err
	}
	st := &WorkerStatus{Worker: worker, Open: len(open) > 0}
	if st.Open {
		sess := open[len(open)-1]
		st.OpenSession = &sess
	}
	return st, nil
}

// Attendance lists a worker's sessions in [from, to) with reconciled
// per-day minutes. Reading a range opportunistically auto-closes stale
// sessions first so totals reflect policy.
func (s SessionService) Attendance(ctx context.Context, workerRef string, from, to time.Time) (*AttendanceView, error) {
	if !from.Before(to) {
		return nil, domain.Validationf("from must be before to")
	}
	worker, aliases, err := s.Identity.Resolve(ctx, workerRef)
	if err != nil {
		return nil, err
	}
	if _, err := s.sweepOpen(ctx, aliases); err != nil {
		return nil, err
	}

	loc := s.Config.Location
	// A day of padding on each side absorbs the zone offset between the
	// UTC start_at column and local civil days.
	sessions, err := s.Sessions.ListRange(ctx, aliases, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	view := &AttendanceView{Worker: worker}
	for day := interval.CivilDate(from, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
		m := interval.DayMinutes(sessions, day, loc)
		view.Days = append(view.Days, DayTotal{Date: day.Format("2006-01-02"), Minutes: m})
		view.TotalMinutes += m
	}
	for _, sess := range sessions {
		d := interval.CivilDate(sess.StartAt, loc)
		if !d.Before(interval.CivilDate(from, loc)) && d.Before(to) {
			view.Sessions = append(view.Sessions, sess)
		}
	}
	return view, nil
}

// sweepOpen auto-closes stale open sessions per policy and returns the
// ones still genuinely open. A session is stale when its check-in fell on
// a configured work day and that day's cutoff already passed. Sessions
// opened on non-work days are left alone: policy forbids starting them in
// the first place, so one being open signals an anomaly that should stay
// visible rather than be silently resolved.
func (s SessionService) sweepOpen(ctx context.Context, aliases domain.WorkerAliasSet) ([]domain.WorkSession, error) {
	open, err := s.Sessions.ListOpen(ctx, aliases)
	if err != nil {
		return nil, err
	}
	loc := s.Config.Location
	now := s.now()

	var still []domain.WorkSession
	for _, sess := range open {
		startLocal := sess.StartAt.In(loc)
		if !s.Config.IsWorkDay(startLocal.Weekday()) {
			still = append(still, sess)
			continue
		}
		cutoff := interval.CutoffInstant(sess.StartAt, s.Config.CutoffHour, s.Config.CutoffMinute, loc)
		if !now.After(cutoff) || !cutoff.After(sess.StartAt) {
			still = append(still, sess)
			continue
		}
		closed, err := s.Sessions.AutoClose(ctx, sess.ID, cutoff)
		if err != nil {
			return nil, err
		}
		if closed {
			s.logger().Info("auto-closed stale session", "session", sess.ID, "cutoff", cutoff)
		}
	}
	return still, nil
}

func (s SessionService) ensureWeekUnlocked(ctx context.Context, workerID int64, at time.Time) error {
	weekStart := interval.WeekStart(at, s.Config.Location)
	approval, err := s.Approvals.GetWeek(ctx, workerID, weekStart)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if approval.Status == domain.ApprovalApproved {
		return domain.Forbiddenf("week of %s is approved and locked", weekStart.Format("2006-01-02"))
	}
	return nil
}

func (s SessionService) effectiveTime(client *time.Time) time.Time {
	if client != nil {
		return client.In(s.Config.Location)
	}
	return s.now()
}

func (s SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().In(s.Config.Location)
}

func (s SessionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func validateGeo(g GeoInput) (domain.Geolocation, error) {
	if g.Latitude == nil || g.Longitude == nil || g.Accuracy == nil {
		return domain.Geolocation{}, domain.Validationf("latitude, longitude and accuracy are required")
	}
	if *g.Latitude < -90 || *g.Latitude > 90 {
		return domain.Geolocation{}, domain.Validationf("latitude out of range")
	}
	if *g.Longitude < -180 || *g.Longitude > 180 {
		return domain.Geolocation{}, domain.Validationf("longitude out of range")
	}
	if *g.Accuracy <= 0 {
		return domain.Geolocation{}, domain.Validationf("accuracy must be positive")
	}
	return domain.Geolocation{Latitude: *g.Latitude, Longitude: *g.Longitude, Accuracy: *g.Accuracy}, nil
}

func origin(o domain.OriginMedium) domain.OriginMedium {
	if o == "" {
		return domain.OriginWeb
	}
	return o
}
