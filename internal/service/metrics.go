package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MetricsService calculates and stores watch-wide metrics
type MetricsService struct {
	db *sql.DB
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(db *sql.DB) *MetricsService {
	return &MetricsService{db: db}
}

// WatchMetrics represents calculated watch-wide metrics
type WatchMetrics struct {
	TotalWatches           int
	ActiveWatches          int
	NotificationsSent      int
	AttemptsMade           int
	BusiestFacility        string
	BusiestFacilityWatches int
	LastCycleID            string
	LastCycleNotified      int
}

// CalculateAndStore calculates metrics from the reservations table, folds in
// the last cycle when given and stores them
func (m *MetricsService) CalculateAndStore(ctx context.Context, last *CycleStats) (*WatchMetrics, error) {
	metrics := &WatchMetrics{}

	totalsQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE monitoring_active AND NOT user_deleted),
			COALESCE(SUM(success_sent), 0),
			COALESCE(SUM(attempts_made), 0)
		FROM reservations
	`
	err := m.db.QueryRowContext(ctx, totalsQuery).Scan(
		&metrics.TotalWatches,
		&metrics.ActiveWatches,
		&metrics.NotificationsSent,
		&metrics.AttemptsMade,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate watch metrics: %w", err)
	}

	// Only active watches count toward upstream load
	busiestQuery := `
		SELECT facility_id, COUNT(*) AS watches
		FROM reservations
		WHERE monitoring_active AND NOT user_deleted
		GROUP BY facility_id
		ORDER BY watches DESC, facility_id
		LIMIT 1
	`
	err = m.db.QueryRowContext(ctx, busiestQuery).Scan(
		&metrics.BusiestFacility,
		&metrics.BusiestFacilityWatches,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find busiest facility: %w", err)
	}

	if last != nil {
		metrics.LastCycleID = last.ID
		metrics.LastCycleNotified = last.Notified
	}

	values := []struct{ name, value string }{
		{"total_watches", fmt.Sprintf("%d", metrics.TotalWatches)},
		{"active_watches", fmt.Sprintf("%d", metrics.ActiveWatches)},
		{"notifications_sent", fmt.Sprintf("%d", metrics.NotificationsSent)},
		{"attempts_made", fmt.Sprintf("%d", metrics.AttemptsMade)},
		{"busiest_facility", metrics.BusiestFacility},
	}
	if last != nil {
		values = append(values,
			struct{ name, value string }{"last_cycle_id", metrics.LastCycleID},
			struct{ name, value string }{"last_cycle_notified", fmt.Sprintf("%d", metrics.LastCycleNotified)},
		)
	}
	for _, v := range values {
		if err := m.storeMetric(ctx, v.name, v.value); err != nil {
			return nil, err
		}
	}

	return metrics, nil
}

// storeMetric stores a single metric value
func (m *MetricsService) storeMetric(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO metrics (metric_name, metric_value, calculated_at)
		VALUES ($1, $2, $3)
	`

	_, err := m.db.ExecContext(ctx, query, name, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store metric %s: %w", name, err)
	}

	return nil
}

// GetLatestMetrics retrieves the most recent value of every metric
func (m *MetricsService) GetLatestMetrics(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (metric_name) metric_name, metric_value
		FROM metrics
		ORDER BY metric_name, calculated_at DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = value
	}

	return metrics, rows.Err()
}
