package repository

import (
	"context"
	"errors"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

// PayrollRepository persists immutable payroll runs. There is no update
// path: a re-generation inserts a new run under a new id.
type PayrollRepository struct {
	DB       *db.Postgres
	Currency string
}

func (r PayrollRepository) CreateRun(ctx context.Context, run *domain.PayrollRun) error {
	return r.DB.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO payroll_runs (id, period_start, period_end, generated_by, generated_by_id, total_pay, warnings, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7, now())
			RETURNING created_at
		`, run.ID, run.PeriodStart, run.PeriodEnd, run.GeneratedBy, run.GeneratedByID,
			run.TotalPay.Amount, run.Warnings).Scan(&run.CreatedAt); err != nil {
			return err
		}
		for i := range run.Rows {
			row := &run.Rows[i]
			if err := tx.QueryRow(ctx, `
				INSERT INTO payroll_rows (run_id, worker_id, worker_name, staff_type, rate,
					regular_minutes, overtime_minutes, regular_pay, overtime_pay, total_pay)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				RETURNING id
			`, run.ID, row.WorkerID, row.WorkerName, string(row.StaffType), row.Rate.Amount,
				row.RegularMinutes, row.OvertimeMinutes, row.RegularPay.Amount, row.OvertimePay.Amount,
				row.TotalPay.Amount).Scan(&row.ID); err != nil {
				return err
			}
			row.RunID = run.ID
		}
		return nil
	})
}

func (r PayrollRepository) ListRuns(ctx context.Context, limit int) ([]domain.PayrollRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, period_start, period_end, generated_by, generated_by_id, total_pay, warnings, created_at
		FROM payroll_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PayrollRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (r PayrollRepository) GetRun(ctx context.Context, id string) (*domain.PayrollRun, error) {
	run, err := r.scanRun(r.DB.Pool.QueryRow(ctx, `
		SELECT id, period_start, period_end, generated_by, generated_by_id, total_pay, warnings, created_at
		FROM payroll_runs
		WHERE id=$1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, run_id, worker_id, worker_name, staff_type, rate,
			regular_minutes, overtime_minutes, regular_pay, overtime_pay, total_pay
		FROM payroll_rows
		WHERE run_id=$1
		ORDER BY worker_name ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row  domain.PayrollRow
			typ  string
			rate int64
			reg  int64
			ot   int64
			tot  int64
		)
		if err := rows.Scan(&row.ID, &row.RunID, &row.WorkerID, &row.WorkerName, &typ, &rate,
			&row.RegularMinutes, &row.OvertimeMinutes, &reg, &ot, &tot); err != nil {
			return nil, err
		}
		row.StaffType = domain.StaffType(typ)
		row.Rate = domain.Money{Amount: rate, Currency: r.Currency}
		row.RegularPay = domain.Money{Amount: reg, Currency: r.Currency}
		row.OvertimePay = domain.Money{Amount: ot, Currency: r.Currency}
		row.TotalPay = domain.Money{Amount: tot, Currency: r.Currency}
		run.Rows = append(run.Rows, row)
	}
	return run, rows.Err()
}

func (r PayrollRepository) scanRun(row pgx.Row) (*domain.PayrollRun, error) {
	var (
		run   domain.PayrollRun
		total int64
	)
	if err := row.Scan(&run.ID, &run.PeriodStart, &run.PeriodEnd, &run.GeneratedBy, &run.GeneratedByID,
		&total, &run.Warnings, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.TotalPay = domain.Money{Amount: total, Currency: r.Currency}
	return &run, nil
}
