package repository

import (
	"context"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
)

// Store interfaces let services run against fakes in tests; the pgx
// repositories in this package are the production implementations.

type WorkerStore interface {
	// FindByIDOrCode resolves a caller-supplied reference against the
	// registry by internal id or legacy code.
	FindByIDOrCode(ctx context.Context, ref string) (*domain.Worker, error)
	GetByID(ctx context.Context, id int64) (*domain.Worker, error)
	GetByEmail(ctx context.Context, email string) (*domain.Worker, error)
	ListActive(ctx context.Context) ([]domain.Worker, error)
	UpsertRates(ctx context.Context, workerID int64, rate, trainingRate, mileageRate *domain.Money) (*domain.Worker, error)
}

type OpenSessionParams struct {
	WorkerRef   string
	WorkerID    int64
	ContextID   string
	ContextKind domain.ContextKind
	StartAt     time.Time
	Origin      domain.OriginMedium
	Geo         domain.Geolocation
}

type SessionStore interface {
	// Open inserts an OPEN session. The table carries a partial unique
	// index on (worker_id, context_id) WHERE end_at IS NULL; a racing
	// second insert fails with a unique violation (see IsDuplicate).
	Open(ctx context.Context, p OpenSessionParams) (*domain.WorkSession, error)
	ListOpen(ctx context.Context, aliases domain.WorkerAliasSet) ([]domain.WorkSession, error)
	// CloseOpen closes every open session the alias set holds in the
	// given context at one endAt, returning how many were closed.
	CloseOpen(ctx context.Context, aliases domain.WorkerAliasSet, contextID string, endAt time.Time, geo *domain.Geolocation) (int, error)
	ListRange(ctx context.Context, aliases domain.WorkerAliasSet, from, to time.Time) ([]domain.WorkSession, error)
	// AutoClose sets endAt and the AUTO_CLOSED flag iff the session is
	// still open; re-running never changes an already-closed session.
	AutoClose(ctx context.Context, sessionID int64, endAt time.Time) (bool, error)
	// ListVisitSessions returns closed visit-kind sessions in [from, to),
	// optionally only those whose parent context completed.
	ListVisitSessions(ctx context.Context, from, to time.Time, completedOnly bool) ([]domain.WorkSession, error)
	GetContext(ctx context.Context, id string) (*domain.WorkContext, error)
}

type ApprovalFilter struct {
	Search string
	Status domain.ApprovalStatus
	Limit  int
}

type SavePendingParams struct {
	WorkerID        int64
	WeekStart       time.Time
	WeekEnd         time.Time
	ComputedMinutes int
	Overrides       domain.DayOverrides
	FinalMinutes    int
	Reason          string
}

type ApproveParams struct {
	WorkerID        int64
	WeekStart       time.Time
	WeekEnd         time.Time
	ComputedMinutes int
	// Finalize derives the frozen final minutes from the overrides stored
	// on the row at commit time, while the row is locked. With no
	// Finalize the computed minutes freeze as-is.
	Finalize      func(overrides domain.DayOverrides) int
	Reason        string
	ApproverID    int64
	ApproverEmail string
	ApprovedAt    time.Time
}

type ApprovalStore interface {
	GetWeek(ctx context.Context, workerID int64, weekStart time.Time) (*domain.WeeklyApproval, error)
	List(ctx context.Context, f ApprovalFilter) ([]domain.WeeklyApproval, error)
	// ListApproved returns APPROVED weeks whose start falls in [from, to).
	ListApproved(ctx context.Context, workerID int64, from, to time.Time) ([]domain.WeeklyApproval, error)
	// SavePending upserts an adjustment; fails with ErrWeekApproved when
	// the stored row is APPROVED.
	SavePending(ctx context.Context, p SavePendingParams) (*domain.WeeklyApproval, error)
	// Approve freezes the week; fails with ErrWeekApproved when already
	// APPROVED. Status and overrides are re-read inside the transaction
	// so a concurrent adjustment cannot leak into the frozen total.
	Approve(ctx context.Context, p ApproveParams) (*domain.WeeklyApproval, error)
	// Unlock reverts to PENDING clearing approver fields; fails with
	// ErrWeekNotApproved when there is nothing to unlock.
	Unlock(ctx context.Context, workerID int64, weekStart time.Time, reason string, actor domain.Actor) (*domain.WeeklyApproval, error)
}

type PayrollStore interface {
	// CreateRun persists header and rows in one transaction; rows are
	// never mutated afterwards.
	CreateRun(ctx context.Context, run *domain.PayrollRun) error
	ListRuns(ctx context.Context, limit int) ([]domain.PayrollRun, error)
	GetRun(ctx context.Context, id string) (*domain.PayrollRun, error)
}

type AuditLogStore interface {
	Record(ctx context.Context, in AuditEntryInput) error
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
