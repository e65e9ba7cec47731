package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// WorkerRepository is the employee registry: one row per staff member,
// carrying the legacy human code alongside the internal id plus the hourly
// rate configuration payroll reads.
type WorkerRepository struct {
	DB       *db.Postgres
	Currency string
}

var ErrNotFound = errors.New("not found")

// IsDuplicate detects unique constraint violation.
func IsDuplicate(err error) bool {
	return db.IsUniqueViolation(err)
}

const workerColumns = `id, code, name, email, role, staff_type, rate, training_rate, mileage_rate, password_hash, active, created_at, updated_at`

func (r WorkerRepository) FindByIDOrCode(ctx context.Context, ref string) (*domain.Worker, error) {
	// Historical references may be the internal id rendered as text or
	// the legacy code, so the lookup matches either field.
	var id *int64
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		id = &n
	}
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE deleted_at IS NULL AND (id = $1 OR code = $2)
		ORDER BY active DESC, id ASC
		LIMIT 1
	`, id, ref)
	return r.scanWorker(row)
}

func (r WorkerRepository) GetByID(ctx context.Context, id int64) (*domain.Worker, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	return r.scanWorker(row)
}

func (r WorkerRepository) GetByEmail(ctx context.Context, email string) (*domain.Worker, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE deleted_at IS NULL AND email <> '' AND lower(email) = lower($1)
		ORDER BY active DESC, id ASC
		LIMIT 1
	`, email)
	return r.scanWorker(row)
}

func (r WorkerRepository) ListActive(ctx context.Context) ([]domain.Worker, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE deleted_at IS NULL AND active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Worker
	for rows.Next() {
		w, err := r.scanWorker(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

type UpsertWorkerParams struct {
	ID           *int64
	Code         string
	Name         string
	Email        string
	Role         domain.UserRole
	Type         domain.StaffType
	PasswordHash *string
	Active       bool
}

// Upsert creates or updates a registry entry. Rates are managed separately
// through UpsertRates; a nil PasswordHash leaves the stored hash alone.
func (r WorkerRepository) Upsert(ctx context.Context, p UpsertWorkerParams) (*domain.Worker, error) {
	if p.ID != nil {
		row := r.DB.Pool.QueryRow(ctx, `
			UPDATE workers SET
				code=$2, name=$3, email=$4, role=$5, staff_type=$6,
				password_hash=COALESCE($7, password_hash),
				active=$8, updated_at=now()
			WHERE id=$1 AND deleted_at IS NULL
			RETURNING `+workerColumns+`
		`, *p.ID, p.Code, p.Name, p.Email, p.Role, p.Type, p.PasswordHash, p.Active)
		return r.scanWorker(row)
	}
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO workers (code, name, email, role, staff_type, password_hash, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now(), now())
		RETURNING `+workerColumns+`
	`, p.Code, p.Name, p.Email, p.Role, p.Type, p.PasswordHash, p.Active)
	return r.scanWorker(row)
}

func (r WorkerRepository) UpsertRates(ctx context.Context, workerID int64, rate, trainingRate, mileageRate *domain.Money) (*domain.Worker, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		UPDATE workers SET
			rate=COALESCE($2, rate),
			training_rate=COALESCE($3, training_rate),
			mileage_rate=COALESCE($4, mileage_rate),
			updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+workerColumns+`
	`, workerID, moneyAmount(rate), moneyAmount(trainingRate), moneyAmount(mileageRate))
	return r.scanWorker(row)
}

func moneyAmount(m *domain.Money) *int64 {
	if m == nil {
		return nil
	}
	return &m.Amount
}

func (r WorkerRepository) scanWorker(row pgx.Row) (*domain.Worker, error) {
	var (
		w         domain.Worker
		role, typ string
		rate      pgtype.Int8
		training  pgtype.Int8
		mileage   pgtype.Int8
	)
	if err := row.Scan(
		&w.ID,
		&w.Code,
		&w.Name,
		&w.Email,
		&role,
		&typ,
		&rate,
		&training,
		&mileage,
		&w.PasswordHash,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	w.Role = domain.UserRole(role)
	w.Type = domain.StaffType(typ)
	w.Rate = r.money(rate)
	w.TrainingRate = r.money(training)
	w.MileageRate = r.money(mileage)
	return &w, nil
}

func (r WorkerRepository) money(v pgtype.Int8) *domain.Money {
	if !v.Valid {
		return nil
	}
	return &domain.Money{Amount: v.Int64, Currency: r.Currency}
}
