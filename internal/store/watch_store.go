package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mic-havock/ridb-backend/internal/model"
)

// ErrNotFound is returned when a watch row does not exist
var ErrNotFound = errors.New("watch not found")

const watchColumns = `
	id, name, email_address, campsite_id, campsite_name, campsite_number,
	facility_id, reservation_start_date, reservation_end_date,
	monitoring_active, attempts_made, success_sent, last_success_sent_at,
	user_deleted, created_at, updated_at`

// WatchStore handles database operations for watch records
type WatchStore struct {
	db *sql.DB
}

// NewWatchStore creates a new WatchStore
func NewWatchStore(db *sql.DB) *WatchStore {
	return &WatchStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row rowScanner) (model.Watch, error) {
	var w model.Watch
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.EmailAddress,
		&w.CampsiteID,
		&w.CampsiteName,
		&w.CampsiteNumber,
		&w.FacilityID,
		&w.StartDate,
		&w.EndDate,
		&w.MonitoringActive,
		&w.AttemptsMade,
		&w.SuccessSent,
		&w.LastSuccessSentAt,
		&w.UserDeleted,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return w, err
	}
	w.StartDate = model.Day(w.StartDate)
	w.EndDate = model.Day(w.EndDate)
	return w, nil
}

// ListActive returns every watch that is monitoring and not soft-deleted
func (s *WatchStore) ListActive(ctx context.Context) ([]model.Watch, error) {
	query := `SELECT ` + watchColumns + `
		FROM reservations
		WHERE monitoring_active = TRUE AND user_deleted = FALSE
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active watches: %w", err)
	}
	defer rows.Close()

	var watches []model.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch: %w", err)
		}
		watches = append(watches, w)
	}

	return watches, rows.Err()
}

// GetByID retrieves a single watch
func (s *WatchStore) GetByID(ctx context.Context, id int64) (*model.Watch, error) {
	query := `SELECT ` + watchColumns + ` FROM reservations WHERE id = $1`

	w, err := scanWatch(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watch %d: %w", id, err)
	}

	return &w, nil
}

// Create validates and inserts a watch, filling in its ID and timestamps
func (s *WatchStore) Create(ctx context.Context, w *model.Watch) error {
	if err := w.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO reservations (name, email_address, campsite_id, campsite_name,
		                          campsite_number, facility_id, reservation_start_date,
		                          reservation_end_date, monitoring_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		w.Name,
		w.EmailAddress,
		w.CampsiteID,
		w.CampsiteName,
		w.CampsiteNumber,
		w.FacilityID,
		model.FormatDate(w.StartDate),
		model.FormatDate(w.EndDate),
		w.MonitoringActive,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create watch for campsite %s: %w", w.CampsiteID, err)
	}

	return nil
}

// Deactivate turns monitoring off and resets the success counter
func (s *WatchStore) Deactivate(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE reservations
		SET monitoring_active = FALSE, success_sent = 0, updated_at = $2
		WHERE id = $1
	`
	return s.execOne(ctx, "deactivate", id, query, id, at)
}

// IncrementAttempts adds one to attempts_made
func (s *WatchStore) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE reservations
		SET attempts_made = attempts_made + 1
		WHERE id = $1
	`
	return s.execOne(ctx, "increment attempts for", id, query, id)
}

// RecordSuccess counts a delivered notification and stamps its time
func (s *WatchStore) RecordSuccess(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE reservations
		SET success_sent = success_sent + 1,
		    last_success_sent_at = $2,
		    updated_at = $2
		WHERE id = $1
	`
	return s.execOne(ctx, "record success for", id, query, id, at)
}

func (s *WatchStore) execOne(ctx context.Context, action string, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s watch %d: %w", action, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s watch %d: %w", action, id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s watch %d: %w", action, id, ErrNotFound)
	}
	return nil
}
