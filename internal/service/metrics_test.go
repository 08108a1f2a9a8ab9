package service

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mic-havock/ridb-backend/internal/store"
)

func TestMetricsService_CalculateAndStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := store.NewDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE reservations, metrics RESTART IDENTITY`)
	require.NoError(t, err)

	watches := store.NewWatchStore(db)
	for _, w := range []struct {
		facility, campsite string
		active             bool
	}{
		{"100", "5", true},
		{"100", "6", true},
		{"200", "9", true},
		{"300", "1", false},
	} {
		mw := watch(0, w.facility, w.campsite, "2025-06-01", "2025-06-03")
		mw.MonitoringActive = w.active
		require.NoError(t, watches.Create(ctx, &mw))
		require.NoError(t, watches.IncrementAttempts(ctx, mw.ID))
	}

	svc := NewMetricsService(db)
	metrics, err := svc.CalculateAndStore(ctx, &CycleStats{ID: "abcd1234", Notified: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.TotalWatches)
	assert.Equal(t, 3, metrics.ActiveWatches)
	assert.Equal(t, 4, metrics.AttemptsMade)
	assert.Equal(t, "100", metrics.BusiestFacility)
	assert.Equal(t, 2, metrics.BusiestFacilityWatches)

	latest, err := svc.GetLatestMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", latest["active_watches"])
	assert.Equal(t, "abcd1234", latest["last_cycle_id"])
	assert.Equal(t, "2", latest["last_cycle_notified"])
}
