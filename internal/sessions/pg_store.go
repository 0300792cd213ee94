package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const recordColumns = `id, user_id, user_email, device_type, browser, os, screen_resolution, country, created_at, last_activity`

// PGStore keeps records in the device_sessions table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts rec.
func (s *PGStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO device_sessions (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, rec.UserEmail,
		string(rec.Device.Type), rec.Device.Browser, rec.Device.OS, rec.Device.ScreenResolution,
		rec.Location.Country, rec.CreatedAt, rec.LastActivity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return unavailable("pg create", err)
	}
	return nil
}

// Get loads one record.
func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM device_sessions WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, unavailable("pg get", err)
	}
	return rec, nil
}

// ListByUser returns all records of userID.
func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM device_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, unavailable("pg list", err)
	}
	defer rows.Close()
	recs := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("pg scan", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("pg list", err)
	}
	return recs, nil
}

// Delete removes the record; absent ids are ignored.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM device_sessions WHERE id = $1`, id); err != nil {
		return unavailable("pg delete", err)
	}
	return nil
}

// Touch updates last_activity.
func (s *PGStore) Touch(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE device_sessions SET last_activity = $2 WHERE id = $1`, id, at)
	if err != nil {
		return unavailable("pg touch", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Sweep deletes records idle since before cutoff.
func (s *PGStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM device_sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, unavailable("pg sweep", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec        Record
		deviceType string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.UserEmail,
		&deviceType, &rec.Device.Browser, &rec.Device.OS, &rec.Device.ScreenResolution,
		&rec.Location.Country, &rec.CreatedAt, &rec.LastActivity,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Device.Type = DeviceType(deviceType)
	return rec, nil
}

var (
	_ Store   = (*PGStore)(nil)
	_ Sweeper = (*PGStore)(nil)
)
