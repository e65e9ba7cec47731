package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

var (
	ErrWeekApproved    = errors.New("week is approved")
	ErrWeekNotApproved = errors.New("week is not approved")
)

// ApprovalRepository persists the PENDING/APPROVED row per (worker, week).
// Every transition re-reads the stored status inside a transaction with a
// row lock, so a concurrent adjust cannot lose against an approve.
type ApprovalRepository struct {
	DB *db.Postgres
}

const approvalColumns = `id, worker_id, week_start, week_end, status, computed_minutes, overrides, final_minutes,
	reason, approver_id, approver_email, approved_at, created_at, updated_at`

func (r ApprovalRepository) GetWeek(ctx context.Context, workerID int64, weekStart time.Time) (*domain.WeeklyApproval, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+approvalColumns+`
		FROM weekly_approvals
		WHERE worker_id=$1 AND week_start=$2
	`, workerID, dateOnly(weekStart))
	return scanApproval(row)
}

func (r ApprovalRepository) List(ctx context.Context, f ApprovalFilter) ([]domain.WeeklyApproval, error) {
	if f.Limit <= 0 {
		f.Limit = 200
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+prefixedApprovalColumns("a")+`
		FROM weekly_approvals a
		JOIN workers w ON w.id = a.worker_id
		WHERE ($1 = '' OR w.name ILIKE '%'||$1||'%' OR w.code ILIKE '%'||$1||'%')
		  AND ($2 = '' OR a.status = $2)
		ORDER BY a.week_start DESC, w.name ASC
		LIMIT $3
	`, f.Search, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

func (r ApprovalRepository) ListApproved(ctx context.Context, workerID int64, from, to time.Time) ([]domain.WeeklyApproval, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+approvalColumns+`
		FROM weekly_approvals
		WHERE worker_id=$1 AND status='APPROVED' AND week_start >= $2 AND week_start < $3
		ORDER BY week_start ASC
	`, workerID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

func (r ApprovalRepository) SavePending(ctx context.Context, p SavePendingParams) (*domain.WeeklyApproval, error) {
	overrides, err := marshalOverrides(p.Overrides)
	if err != nil {
		return nil, err
	}
	var out *domain.WeeklyApproval
	err = r.DB.WithTx(ctx, func(tx pgx.Tx) error {
		status, _, exists, err := lockWeek(ctx, tx, p.WorkerID, p.WeekStart)
		if err != nil {
			return err
		}
		if exists && status == domain.ApprovalApproved {
			return ErrWeekApproved
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO weekly_approvals (worker_id, week_start, week_end, status, computed_minutes, overrides, final_minutes, reason, created_at, updated_at)
			VALUES ($1,$2,$3,'PENDING',$4,$5,$6,$7, now(), now())
			ON CONFLICT (worker_id, week_start) DO UPDATE SET
				computed_minutes=EXCLUDED.computed_minutes,
				overrides=EXCLUDED.overrides,
				final_minutes=EXCLUDED.final_minutes,
				reason=EXCLUDED.reason,
				updated_at=now()
			RETURNING `+approvalColumns+`
		`, p.WorkerID, dateOnly(p.WeekStart), dateOnly(p.WeekEnd), p.ComputedMinutes, overrides, p.FinalMinutes, p.Reason)
		out, err = scanApproval(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r ApprovalRepository) Approve(ctx context.Context, p ApproveParams) (*domain.WeeklyApproval, error) {
	var out *domain.WeeklyApproval
	err := r.DB.WithTx(ctx, func(tx pgx.Tx) error {
		status, overrides, exists, err := lockWeek(ctx, tx, p.WorkerID, p.WeekStart)
		if err != nil {
			return err
		}
		if exists && status == domain.ApprovalApproved {
			return ErrWeekApproved
		}
		// Overrides come from the locked row so an adjustment racing the
		// freeze cannot leave finalMinutes stale.
		final := p.ComputedMinutes
		if p.Finalize != nil {
			final = p.Finalize(overrides)
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO weekly_approvals (worker_id, week_start, week_end, status, computed_minutes, overrides, final_minutes, reason,
				approver_id, approver_email, approved_at, created_at, updated_at)
			VALUES ($1,$2,$3,'APPROVED',$4,'{}',$5,$6,$7,$8,$9, now(), now())
			ON CONFLICT (worker_id, week_start) DO UPDATE SET
				status='APPROVED',
				computed_minutes=EXCLUDED.computed_minutes,
				final_minutes=EXCLUDED.final_minutes,
				reason=EXCLUDED.reason,
				approver_id=EXCLUDED.approver_id,
				approver_email=EXCLUDED.approver_email,
				approved_at=EXCLUDED.approved_at,
				updated_at=now()
			RETURNING `+approvalColumns+`
		`, p.WorkerID, dateOnly(p.WeekStart), dateOnly(p.WeekEnd), p.ComputedMinutes, final, p.Reason,
			p.ApproverID, p.ApproverEmail, p.ApprovedAt)
		out, err = scanApproval(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r ApprovalRepository) Unlock(ctx context.Context, workerID int64, weekStart time.Time, reason string, actor domain.Actor) (*domain.WeeklyApproval, error) {
	var out *domain.WeeklyApproval
	err := r.DB.WithTx(ctx, func(tx pgx.Tx) error {
		status, _, exists, err := lockWeek(ctx, tx, workerID, weekStart)
		if err != nil {
			return err
		}
		if !exists || status != domain.ApprovalApproved {
			return ErrWeekNotApproved
		}
		// Computed and adjusted minutes stay intact for re-adjustment.
		row := tx.QueryRow(ctx, `
			UPDATE weekly_approvals SET
				status='PENDING',
				reason=$3,
				approver_id=NULL,
				approver_email=NULL,
				approved_at=NULL,
				updated_at=now()
			WHERE worker_id=$1 AND week_start=$2
			RETURNING `+approvalColumns+`
		`, workerID, dateOnly(weekStart), reason)
		out, err = scanApproval(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockWeek(ctx context.Context, tx pgx.Tx, workerID int64, weekStart time.Time) (domain.ApprovalStatus, domain.DayOverrides, bool, error) {
	var status string
	var raw []byte
	err := tx.QueryRow(ctx, `
		SELECT status, overrides FROM weekly_approvals
		WHERE worker_id=$1 AND week_start=$2
		FOR UPDATE
	`, workerID, dateOnly(weekStart)).Scan(&status, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	var overrides domain.DayOverrides
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &overrides); err != nil {
			return "", nil, false, err
		}
	}
	return domain.ApprovalStatus(status), overrides, true, nil
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}

func marshalOverrides(o domain.DayOverrides) ([]byte, error) {
	if o == nil {
		o = domain.DayOverrides{}
	}
	return json.Marshal(o)
}

func prefixedApprovalColumns(alias string) string {
	return alias + `.id, ` + alias + `.worker_id, ` + alias + `.week_start, ` + alias + `.week_end, ` + alias + `.status, ` +
		alias + `.computed_minutes, ` + alias + `.overrides, ` + alias + `.final_minutes,
	` + alias + `.reason, ` + alias + `.approver_id, ` + alias + `.approver_email, ` + alias + `.approved_at, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func collectApprovals(rows pgx.Rows) ([]domain.WeeklyApproval, error) {
	defer rows.Close()
	var items []domain.WeeklyApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func scanApproval(row pgx.Row) (*domain.WeeklyApproval, error) {
	var (
		a         domain.WeeklyApproval
		status    string
		overrides []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.WorkerID,
		&a.WeekStart,
		&a.WeekEnd,
		&status,
		&a.ComputedMinutes,
		&overrides,
		&a.FinalMinutes,
		&a.Reason,
		&a.ApproverID,
		&a.ApproverEmail,
		&a.ApprovedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Status = domain.ApprovalStatus(status)
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &a.Overrides); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
