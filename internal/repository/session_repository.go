package repository

import (
	"context"
	"errors"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/db"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// SessionRepository persists check-in/check-out spans. Rows are never
// deleted; closing and auto-closing set end_at exactly once. The table
// carries a partial unique index:
//
//	CREATE UNIQUE INDEX work_sessions_one_open
//	ON work_sessions (worker_id, context_id) WHERE end_at IS NULL;
//
// which makes "find open session, else create" safe under concurrent
// check-in calls without a prior read.
type SessionRepository struct {
	DB *db.Postgres
}

const sessionColumns = `id, worker_ref, worker_id, context_id, context_kind, start_at, end_at, origin, flags,
	checkin_lat, checkin_lon, checkin_accuracy, checkout_lat, checkout_lon, checkout_accuracy, created_at`

func (r SessionRepository) Open(ctx context.Context, p OpenSessionParams) (*domain.WorkSession, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO work_sessions (worker_ref, worker_id, context_id, context_kind, start_at, origin, flags,
			checkin_lat, checkin_lon, checkin_accuracy, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,'{}',$7,$8,$9, now())
		RETURNING `+sessionColumns+`
	`, p.WorkerRef, p.WorkerID, p.ContextID, string(p.ContextKind), p.StartAt, string(p.Origin),
		p.Geo.Latitude, p.Geo.Longitude, p.Geo.Accuracy)
	return scanSession(row)
}

func (r SessionRepository) ListOpen(ctx context.Context, aliases domain.WorkerAliasSet) ([]domain.WorkSession, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM work_sessions
		WHERE end_at IS NULL AND (worker_id = $1 OR worker_ref = ANY($2))
		ORDER BY start_at ASC
	`, aliases.CanonicalID, aliases.Refs())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r SessionRepository) CloseOpen(ctx context.Context, aliases domain.WorkerAliasSet, contextID string, endAt time.Time, geo *domain.Geolocation) (int, error) {
	var lat, lon, acc *float64
	if geo != nil {
		lat, lon, acc = &geo.Latitude, &geo.Longitude, &geo.Accuracy
	}
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE work_sessions
		SET end_at=$3, checkout_lat=$4, checkout_lon=$5, checkout_accuracy=$6
		WHERE end_at IS NULL AND context_id=$2 AND (worker_id = $1 OR worker_ref = ANY($7))
	`, aliases.CanonicalID, contextID, endAt, lat, lon, acc, aliases.Refs())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r SessionRepository) ListRange(ctx context.Context, aliases domain.WorkerAliasSet, from, to time.Time) ([]domain.WorkSession, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM work_sessions
		WHERE start_at >= $1 AND start_at < $2
		  AND (worker_id = $3 OR worker_ref = ANY($4))
		ORDER BY start_at ASC
	`, from, to, aliases.CanonicalID, aliases.Refs())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r SessionRepository) AutoClose(ctx context.Context, sessionID int64, endAt time.Time) (bool, error) {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE work_sessions
		SET end_at=$2, flags = array_append(flags, $3)
		WHERE id=$1 AND end_at IS NULL
	`, sessionID, endAt, string(domain.FlagAutoClosed))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r SessionRepository) ListVisitSessions(ctx context.Context, from, to time.Time, completedOnly bool) ([]domain.WorkSession, error) {
	query := `
		SELECT ` + prefixedSessionColumns("s") + `
		FROM work_sessions s
		JOIN work_contexts c ON c.id = s.context_id
		WHERE s.context_kind = 'visit' AND s.end_at IS NOT NULL
		  AND s.start_at >= $1 AND s.start_at < $2`
	if completedOnly {
		query += `
		  AND c.status = 'completed'`
	}
	query += `
		ORDER BY s.start_at ASC`
	rows, err := r.DB.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r SessionRepository) GetContext(ctx context.Context, id string) (*domain.WorkContext, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, kind, status, created_at
		FROM work_contexts
		WHERE id=$1
	`, id)
	var (
		c            domain.WorkContext
		kind, status string
	)
	if err := row.Scan(&c.ID, &kind, &status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Kind = domain.ContextKind(kind)
	c.Status = domain.ContextStatus(status)
	return &c, nil
}

func prefixedSessionColumns(alias string) string {
	return alias + `.id, ` + alias + `.worker_ref, ` + alias + `.worker_id, ` + alias + `.context_id, ` +
		alias + `.context_kind, ` + alias + `.start_at, ` + alias + `.end_at, ` + alias + `.origin, ` + alias + `.flags,
	` + alias + `.checkin_lat, ` + alias + `.checkin_lon, ` + alias + `.checkin_accuracy,
	` + alias + `.checkout_lat, ` + alias + `.checkout_lon, ` + alias + `.checkout_accuracy, ` + alias + `.created_at`
}

func collectSessions(rows pgx.Rows) ([]domain.WorkSession, error) {
	defer rows.Close()
	var items []domain.WorkSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func scanSession(row pgx.Row) (*domain.WorkSession, error) {
	var (
		s            domain.WorkSession
		workerID     pgtype.Int8
		kind, origin string
		flags        []string
		outLat       pgtype.Float8
		outLon       pgtype.Float8
		outAcc       pgtype.Float8
	)
	if err := row.Scan(
		&s.ID,
		&s.WorkerRef,
		&workerID,
		&s.ContextID,
		&kind,
		&s.StartAt,
		&s.EndAt,
		&origin,
		&flags,
		&s.CheckInGeo.Latitude,
		&s.CheckInGeo.Longitude,
		&s.CheckInGeo.Accuracy,
		&outLat,
		&outLon,
		&outAcc,
		&s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if workerID.Valid {
		s.WorkerID = &workerID.Int64
	}
	s.ContextKind = domain.ContextKind(kind)
	s.Origin = domain.OriginMedium(origin)
	for _, f := range flags {
		s.Flags = append(s.Flags, domain.SessionFlag(f))
	}
	if outLat.Valid && outLon.Valid {
		s.CheckOutGeo = &domain.Geolocation{
			Latitude:  outLat.Float64,
			Longitude: outLon.Float64,
			Accuracy:  outAcc.Float64,
		}
	}
	return &s, nil
}
