package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/config"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/interval"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory stores implementing the repository interfaces. They reproduce
// the behaviors the services depend on, including the partial unique index
// on open sessions and the approved-week guard inside SavePending.

func testConfig() config.Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return config.Config{
		DefaultCurrency: "USD",
		Location:        loc,
		CutoffHour:      17,
		CutoffMinute:    0,
		WorkDays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
		OvertimeThresholdMn: 2400,
	}
}

type fakeWorkerStore struct {
	workers []domain.Worker
}

func (f *fakeWorkerStore) FindByIDOrCode(_ context.Context, ref string) (*domain.Worker, error) {
	for i := range f.workers {
		w := f.workers[i]
		if w.Code == ref || strconv.FormatInt(w.ID, 10) == ref {
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeWorkerStore) GetByID(_ context.Context, id int64) (*domain.Worker, error) {
	for i := range f.workers {
		if f.workers[i].ID == id {
			w := f.workers[i]
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeWorkerStore) GetByEmail(_ context.Context, email string) (*domain.Worker, error) {
	for i := range f.workers {
		if f.workers[i].Email == email {
			w := f.workers[i]
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeWorkerStore) ListActive(_ context.Context) ([]domain.Worker, error) {
	var out []domain.Worker
	for _, w := range f.workers {
		if w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) UpsertRates(_ context.Context, workerID int64, rate, trainingRate, mileageRate *domain.Money) (*domain.Worker, error) {
	for i := range f.workers {
		if f.workers[i].ID != workerID {
			continue
		}
		if rate != nil {
			f.workers[i].Rate = rate
		}
		if trainingRate != nil {
			f.workers[i].TrainingRate = trainingRate
		}
		if mileageRate != nil {
			f.workers[i].MileageRate = mileageRate
		}
		w := f.workers[i]
		return &w, nil
	}
	return nil, repository.ErrNotFound
}

type fakeSessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions []domain.WorkSession
	contexts map[string]domain.WorkContext
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{contexts: map[string]domain.WorkContext{}}
}

func (f *fakeSessionStore) addContext(id string, kind domain.ContextKind, status domain.ContextStatus) {
	f.contexts[id] = domain.WorkContext{ID: id, Kind: kind, Status: status}
}

func (f *fakeSessionStore) Open(_ context.Context, p repository.OpenSessionParams) (*domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.EndAt == nil && s.WorkerID != nil && *s.WorkerID == p.WorkerID && s.ContextID == p.ContextID {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "work_sessions_open_uniq"}
		}
	}
	f.nextID++
	workerID := p.WorkerID
	sess := domain.WorkSession{
		ID:          f.nextID,
		WorkerRef:   p.WorkerRef,
		WorkerID:    &workerID,
		ContextID:   p.ContextID,
		ContextKind: p.ContextKind,
		StartAt:     p.StartAt,
		Origin:      p.Origin,
		CheckInGeo:  p.Geo,
		CreatedAt:   p.StartAt,
	}
	f.sessions = append(f.sessions, sess)
	return &sess, nil
}

func (f *fakeSessionStore) matches(s domain.WorkSession, aliases domain.WorkerAliasSet) bool {
	if s.WorkerID != nil && *s.WorkerID == aliases.CanonicalID {
		return true
	}
	return aliases.Contains(s.WorkerRef)
}

func (f *fakeSessionStore) ListOpen(_ context.Context, aliases domain.WorkerAliasSet) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if s.EndAt == nil && f.matches(s, aliases) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) CloseOpen(_ context.Context, aliases domain.WorkerAliasSet, contextID string, endAt time.Time, geo *domain.Geolocation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.sessions {
		s := &f.sessions[i]
		if s.EndAt == nil && s.ContextID == contextID && f.matches(*s, aliases) {
			e := endAt
			s.EndAt = &e
			s.CheckOutGeo = geo
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) ListRange(_ context.Context, aliases domain.WorkerAliasSet, from, to time.Time) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if f.matches(s, aliases) && !s.StartAt.Before(from) && s.StartAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) AutoClose(_ context.Context, sessionID int64, endAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		s := &f.sessions[i]
		if s.ID == sessionID && s.EndAt == nil {
			e := endAt
			s.EndAt = &e
			s.Flags = append(s.Flags, domain.FlagAutoClosed)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessionStore) ListVisitSessions(_ context.Context, from, to time.Time, completedOnly bool) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if s.ContextKind != domain.ContextVisit || s.EndAt == nil {
			continue
		}
		if !(!s.StartAt.Before(from) && s.StartAt.Before(to)) {
			continue
		}
		if completedOnly {
			wc, ok := f.contexts[s.ContextID]
			if !ok || wc.Status != domain.ContextCompleted {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionStore) GetContext(_ context.Context, id string) (*domain.WorkContext, error) {
	if wc, ok := f.contexts[id]; ok {
		return &wc, nil
	}
	return nil, repository.ErrNotFound
}

type fakeApprovalStore struct {
	mu        sync.Mutex
	nextID    int64
	approvals map[string]*domain.WeeklyApproval
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{approvals: map[string]*domain.WeeklyApproval{}}
}

func approvalKey(workerID int64, weekStart time.Time) string {
	return fmt.Sprintf("%d|%s", workerID, weekStart.Format("2006-01-02"))
}

func (f *fakeApprovalStore) GetWeek(_ context.Context, workerID int64, weekStart time.Time) (*domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.approvals[approvalKey(workerID, weekStart)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeApprovalStore) List(_ context.Context, _ repository.ApprovalFilter) ([]domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WeeklyApproval
	for _, a := range f.approvals {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeApprovalStore) ListApproved(_ context.Context, workerID int64, from, to time.Time) ([]domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WeeklyApproval
	for _, a := range f.approvals {
		if a.WorkerID == workerID && a.Status == domain.ApprovalApproved &&
			!a.WeekStart.Before(from) && a.WeekStart.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeApprovalStore) SavePending(_ context.Context, p repository.SavePendingParams) (*domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := approvalKey(p.WorkerID, p.WeekStart)
	if a, ok := f.approvals[key]; ok {
		if a.Status == domain.ApprovalApproved {
			return nil, repository.ErrWeekApproved
		}
		a.ComputedMinutes = p.ComputedMinutes
		a.Overrides = p.Overrides
		a.FinalMinutes = p.FinalMinutes
		a.Reason = p.Reason
		cp := *a
		return &cp, nil
	}
	f.nextID++
	a := &domain.WeeklyApproval{
		ID:              f.nextID,
		WorkerID:        p.WorkerID,
		WeekStart:       p.WeekStart,
		WeekEnd:         p.WeekEnd,
		Status:          domain.ApprovalPending,
		ComputedMinutes: p.ComputedMinutes,
		Overrides:       p.Overrides,
		FinalMinutes:    p.FinalMinutes,
		Reason:          p.Reason,
	}
	f.approvals[key] = a
	cp := *a
	return &cp, nil
}

func (f *fakeApprovalStore) Approve(_ context.Context, p repository.ApproveParams) (*domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := approvalKey(p.WorkerID, p.WeekStart)
	a, ok := f.approvals[key]
	if !ok {
		f.nextID++
		a = &domain.WeeklyApproval{ID: f.nextID, WorkerID: p.WorkerID, WeekStart: p.WeekStart, WeekEnd: p.WeekEnd}
		f.approvals[key] = a
	}
	if a.Status == domain.ApprovalApproved {
		return nil, repository.ErrWeekApproved
	}
	a.Status = domain.ApprovalApproved
	a.ComputedMinutes = p.ComputedMinutes
	a.FinalMinutes = p.ComputedMinutes
	if p.Finalize != nil {
		a.FinalMinutes = p.Finalize(a.Overrides)
	}
	a.Reason = p.Reason
	a.ApproverID = &p.ApproverID
	email := p.ApproverEmail
	a.ApproverEmail = &email
	at := p.ApprovedAt
	a.ApprovedAt = &at
	cp := *a
	return &cp, nil
}

func (f *fakeApprovalStore) Unlock(_ context.Context, workerID int64, weekStart time.Time, reason string, _ domain.Actor) (*domain.WeeklyApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.approvals[approvalKey(workerID, weekStart)]
	if !ok || a.Status != domain.ApprovalApproved {
		return nil, repository.ErrWeekNotApproved
	}
	a.Status = domain.ApprovalPending
	a.Reason = reason
	a.ApproverID = nil
	a.ApproverEmail = nil
	a.ApprovedAt = nil
	cp := *a
	return &cp, nil
}

type fakePayrollStore struct {
	mu   sync.Mutex
	runs []domain.PayrollRun
}

func (f *fakePayrollStore) CreateRun(_ context.Context, run *domain.PayrollRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakePayrollStore) ListRuns(_ context.Context, limit int) ([]domain.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PayrollRun, len(f.runs))
	copy(out, f.runs)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePayrollStore) GetRun(_ context.Context, id string) (*domain.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == id {
			cp := f.runs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []repository.AuditEntryInput
}

func (f *fakeAuditStore) Record(_ context.Context, in repository.AuditEntryInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, in)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ int) ([]domain.AuditEntry, error) {
	return nil, nil
}

// approveWeek seeds an APPROVED row the way the production path would.
func approveWeek(store *fakeApprovalStore, workerID int64, weekStart time.Time, final int) {
	key := approvalKey(workerID, weekStart)
	store.nextID++
	approverID := int64(99)
	email := "hr@example.com"
	at := weekStart.AddDate(0, 0, 7)
	store.approvals[key] = &domain.WeeklyApproval{
		ID:              store.nextID,
		WorkerID:        workerID,
		WeekStart:       weekStart,
		WeekEnd:         interval.WeekEnd(weekStart),
		Status:          domain.ApprovalApproved,
		ComputedMinutes: final,
		FinalMinutes:    final,
		ApproverID:      &approverID,
		ApproverEmail:   &email,
		ApprovedAt:      &at,
	}
}
