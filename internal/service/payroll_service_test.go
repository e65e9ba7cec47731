package service

import (
	"context"
	"testing"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payrollFixture struct {
	svc       PayrollService
	workers   *fakeWorkerStore
	sessions  *fakeSessionStore
	approvals *fakeApprovalStore
	payroll   *fakePayrollStore
	audit     *fakeAuditStore
	from, to  time.Time
}

func newPayrollFixture(t *testing.T) *payrollFixture {
	t.Helper()
	cfg := testConfig()
	f := &payrollFixture{
		workers:   &fakeWorkerStore{},
		sessions:  newFakeSessionStore(),
		approvals: newFakeApprovalStore(),
		payroll:   &fakePayrollStore{},
		audit:     &fakeAuditStore{},
		// Two full weeks: Sunday 2026-03-01 through Saturday 2026-03-14.
		from: time.Date(2026, 3, 1, 0, 0, 0, 0, cfg.Location),
		to:   time.Date(2026, 3, 15, 0, 0, 0, 0, cfg.Location),
	}
	f.svc = PayrollService{
		Config:    cfg,
		Workers:   f.workers,
		Sessions:  f.sessions,
		Approvals: f.approvals,
		Payroll:   f.payroll,
		Audit:     f.audit,
		Now:       func() time.Time { return f.to },
	}
	return f
}

func (f *payrollFixture) addWorker(id int64, code string, typ domain.StaffType, rateCents *int64) {
	w := domain.Worker{
		ID: id, Code: code, Name: "Worker " + code, Email: code + "@example.com",
		Role: domain.RoleStaff, Type: typ, Active: true,
	}
	if rateCents != nil {
		w.Rate = &domain.Money{Amount: *rateCents, Currency: "USD"}
	}
	f.workers.workers = append(f.workers.workers, w)
}

// seedVisit records a closed visit session and registers its context with
// the given status.
func (f *payrollFixture) seedVisit(workerID int64, workerRef, contextID string, day time.Time, minutes int, status domain.ContextStatus) {
	f.sessions.addContext(contextID, domain.ContextVisit, status)
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())
	end := start.Add(time.Duration(minutes) * time.Minute)
	wid := workerID
	f.sessions.sessions = append(f.sessions.sessions, domain.WorkSession{
		ID: int64(2000 + len(f.sessions.sessions)), WorkerRef: workerRef, WorkerID: &wid,
		ContextID: contextID, ContextKind: domain.ContextVisit,
		StartAt: start, EndAt: &end,
	})
}

// A field worker with 2000 completed visit minutes at $25.50/h is paid
// $850.00 with no overtime.
func TestGenerate_FieldWorkerPay(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(2550)))

	day := f.from.AddDate(0, 0, 1)
	for i := 0; i < 5; i++ {
		f.seedVisit(7, "EMP-7", "visit-a"+string(rune('0'+i)), day.AddDate(0, 0, i), 400, domain.ContextCompleted)
	}

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)

	row := run.Rows[0]
	assert.Equal(t, 2000, row.RegularMinutes)
	assert.Equal(t, 0, row.OvertimeMinutes)
	assert.Equal(t, int64(85000), row.RegularPay.Amount)
	assert.Equal(t, int64(85000), row.TotalPay.Amount)
	assert.Equal(t, int64(85000), run.TotalPay.Amount)
	assert.Empty(t, run.Warnings)
}

// Minutes beyond the 2400-minute period threshold are paid at 1.5x.
func TestGenerate_OvertimeSplit(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(6000))) // $60/h

	day := f.from.AddDate(0, 0, 1)
	// 2700 minutes over nine days.
	for i := 0; i < 9; i++ {
		f.seedVisit(7, "EMP-7", "visit-b"+string(rune('0'+i)), day.AddDate(0, 0, i), 300, domain.ContextCompleted)
	}

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)

	row := run.Rows[0]
	assert.Equal(t, 2400, row.RegularMinutes)
	assert.Equal(t, 300, row.OvertimeMinutes)
	// 2400m at $60/h = $2400; 300m at $90/h = $450.
	assert.Equal(t, int64(240000), row.RegularPay.Amount)
	assert.Equal(t, int64(45000), row.OvertimePay.Amount)
	assert.Equal(t, int64(285000), row.TotalPay.Amount)
}

// Only visits whose parent context completed are payable for field staff.
func TestGenerate_FieldWorkerSkipsIncompleteVisits(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(3000)))

	day := f.from.AddDate(0, 0, 1)
	f.seedVisit(7, "EMP-7", "visit-done", day, 120, domain.ContextCompleted)
	f.seedVisit(7, "EMP-7", "visit-open", day.AddDate(0, 0, 1), 120, domain.ContextScheduled)
	f.seedVisit(7, "EMP-7", "visit-gone", day.AddDate(0, 0, 2), 120, domain.ContextCancelled)

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)
	assert.Equal(t, 120, run.Rows[0].RegularMinutes)
}

// Office staff are paid approved weekly finalMinutes; unapproved weeks
// contribute nothing.
func TestGenerate_OfficeWorkerUsesApprovedWeeks(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(8, "EMP-8", domain.StaffOffice, ptr(int64(3000))) // $30/h

	approveWeek(f.approvals, 8, f.from, 2400)
	// Second week exists but is still pending: left out of the run.

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)

	row := run.Rows[0]
	assert.Equal(t, 2400, row.RegularMinutes)
	assert.Equal(t, int64(120000), row.TotalPay.Amount)
}

func TestGenerate_OfficeWorkerAddsOwnVisitMinutes(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(8, "EMP-8", domain.StaffOffice, ptr(int64(3000)))

	approveWeek(f.approvals, 8, f.from, 1200)
	f.seedVisit(8, "EMP-8", "visit-x", f.from.AddDate(0, 0, 8), 180, domain.ContextCompleted)

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)
	assert.Equal(t, 1380, run.Rows[0].RegularMinutes)
}

// A worker with minutes but no configured rate appears with zero pay and
// a run-level warning instead of failing the whole run.
func TestGenerate_MissingRateWarns(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, nil)
	f.seedVisit(7, "EMP-7", "visit-a", f.from.AddDate(0, 0, 1), 240, domain.ContextCompleted)

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)
	assert.Equal(t, int64(0), run.Rows[0].TotalPay.Amount)
	assert.Equal(t, 240, run.Rows[0].RegularMinutes)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "no rate configured")
}

func TestGenerate_ZeroMinuteWorkersOmitted(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(3000)))
	f.addWorker(8, "EMP-8", domain.StaffField, ptr(int64(3000)))
	f.seedVisit(7, "EMP-7", "visit-a", f.from.AddDate(0, 0, 1), 60, domain.ContextCompleted)

	run, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, run.Rows, 1)
	assert.Equal(t, int64(7), run.Rows[0].WorkerID)
}

func TestGenerate_RequiresApprover(t *testing.T) {
	f := newPayrollFixture(t)
	staff := domain.Actor{ID: 7, Email: "dana@example.com", Role: domain.RoleStaff}
	_, err := f.svc.Generate(context.Background(), f.from, f.to, staff)
	assert.True(t, domain.IsForbidden(err))
}

func TestGenerate_InvalidPeriod(t *testing.T) {
	f := newPayrollFixture(t)
	_, err := f.svc.Generate(context.Background(), f.to, f.from, hrActor)
	assert.True(t, domain.IsValidation(err))
}

// Re-generating the same period creates a second immutable run; the first
// is untouched.
func TestGenerate_RunsAreImmutable(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(3000)))
	f.seedVisit(7, "EMP-7", "visit-a", f.from.AddDate(0, 0, 1), 60, domain.ContextCompleted)

	first, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	f.seedVisit(7, "EMP-7", "visit-b", f.from.AddDate(0, 0, 2), 60, domain.ContextCompleted)
	second, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	stored, err := f.svc.GetRun(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.Rows[0].RegularMinutes)

	runs, err := f.svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGetRun_NotFound(t *testing.T) {
	f := newPayrollFixture(t)
	_, err := f.svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	// The message names the missing run; clients should not see a worker
	// lookup failure for a bad run id.
	assert.EqualError(t, err, "payroll run not found")
}

func TestUpsertRates_PartialUpdate(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(2550)))

	w, err := f.svc.UpsertRates(context.Background(), "EMP-7", nil, ptr(int64(1500)), nil, hrActor)
	require.NoError(t, err)
	require.NotNil(t, w.Rate)
	assert.Equal(t, int64(2550), w.Rate.Amount)
	require.NotNil(t, w.TrainingRate)
	assert.Equal(t, int64(1500), w.TrainingRate.Amount)
	assert.Nil(t, w.MileageRate)
}

func TestUpsertRates_NegativeRejected(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, nil)
	_, err := f.svc.UpsertRates(context.Background(), "EMP-7", ptr(int64(-1)), nil, nil, hrActor)
	assert.True(t, domain.IsValidation(err))
}

func TestUpsertRates_UnknownWorker(t *testing.T) {
	f := newPayrollFixture(t)
	_, err := f.svc.UpsertRates(context.Background(), "ghost", ptr(int64(100)), nil, nil, hrActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerate_Audited(t *testing.T) {
	f := newPayrollFixture(t)
	f.addWorker(7, "EMP-7", domain.StaffField, ptr(int64(3000)))
	f.seedVisit(7, "EMP-7", "visit-a", f.from.AddDate(0, 0, 1), 60, domain.ContextCompleted)

	_, err := f.svc.Generate(context.Background(), f.from, f.to, hrActor)
	require.NoError(t, err)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "payroll.generate", f.audit.entries[0].Action)
}
