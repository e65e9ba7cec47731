package repository

import (
	"context"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
)

// AuditLogRepository records approval transitions and payroll generations.
// Unlocking an approved week is a sensitive event; the trail keeps who did
// what, to which worker, and why.
type AuditLogRepository struct {
	DB *db.Postgres
}

type AuditEntryInput struct {
	Action     string
	WorkerID   *int64
	Detail     string
	ActorEmail string
	Timestamp  time.Time
}

func (r AuditLogRepository) Record(ctx context.Context, in AuditEntryInput) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO audit_log (action, worker_id, detail, actor_email, logged_at)
		VALUES ($1,$2,$3,$4,$5)
	`, in.Action, in.WorkerID, in.Detail, in.ActorEmail, in.Timestamp)
	return err
}

func (r AuditLogRepository) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, action, worker_id, detail, actor_email, logged_at
		FROM audit_log
		ORDER BY logged_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.WorkerID, &e.Detail, &e.ActorEmail, &e.LoggedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
