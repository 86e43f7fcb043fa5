package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store over JSONB document tables. Statement names
// are registered by internal/db on every pooled connection.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed document store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Facilities returns every record in the emergency-services collection.
func (s *Postgres) Facilities(ctx context.Context) ([]FacilityRecord, error) {
	rows, err := s.pool.Query(ctx, "facilities_all")
	if err != nil {
		return nil, fmt.Errorf("query facilities: %w", err)
	}
	defer rows.Close()

	var records []FacilityRecord
	for rows.Next() {
		var rec FacilityRecord
		var doc map[string]any
		if err := rows.Scan(&rec.ID, &doc); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		rec.Doc = Document(doc)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Device returns the device document for id, or nil when absent.
func (s *Postgres) Device(ctx context.Context, id string) (Document, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, "device_by_id", id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device %s: %w", id, err)
	}
	return Document(doc), nil
}

// AccountByUsername returns the first account document matching username
// exactly, or nil when none exists.
func (s *Postgres) AccountByUsername(ctx context.Context, username string) (Document, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, "account_by_username", username).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account %s: %w", username, err)
	}
	return Document(doc), nil
}

// CrashExists reports whether a crash id has been recorded before.
func (s *Postgres) CrashExists(ctx context.Context, crashID string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, "crash_exists", crashID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check crash %s: %w", crashID, err)
	}
	return true, nil
}

// SaveCrash records a processed crash event. Inserting an already-recorded
// crash id is a no-op.
func (s *Postgres) SaveCrash(ctx context.Context, c Crash) error {
	_, err := s.pool.Exec(ctx, "crash_insert",
		c.ID, c.DeviceID, c.Location.Lat, c.Location.Lng, c.SeenAt)
	if err != nil {
		return fmt.Errorf("save crash %s: %w", c.ID, err)
	}
	return nil
}

// AddFacility upserts a facility document and returns its id. An empty id
// lets the store assign one.
func (s *Postgres) AddFacility(ctx context.Context, id string, doc Document) (string, error) {
	var assigned string
	if err := s.pool.QueryRow(ctx, "facility_insert", id, map[string]any(doc)).Scan(&assigned); err != nil {
		return "", fmt.Errorf("add facility: %w", err)
	}
	return assigned, nil
}

// BindDevice upserts the device document binding a device to its owner.
func (s *Postgres) BindDevice(ctx context.Context, id string, doc Document) error {
	if _, err := s.pool.Exec(ctx, "device_bind", id, map[string]any(doc)); err != nil {
		return fmt.Errorf("bind device %s: %w", id, err)
	}
	return nil
}

// SetAccountToken sets the notification token on an existing account.
func (s *Postgres) SetAccountToken(ctx context.Context, username, token string) error {
	tag, err := s.pool.Exec(ctx, "account_set_token", username, token)
	if err != nil {
		return fmt.Errorf("set token for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", username)
	}
	return nil
}
