package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mic-havock/ridb-backend/internal/model"
)

func watch(id int64, facility, campsite, start, end string) model.Watch {
	return model.Watch{
		ID:               id,
		EmailAddress:     "camper@example.com",
		CampsiteID:       campsite,
		CampsiteName:     "Campground " + facility,
		CampsiteNumber:   "#" + campsite,
		FacilityID:       facility,
		StartDate:        day(start),
		EndDate:          day(end),
		MonitoringActive: true,
	}
}

func ids(watches []model.Watch) []int64 {
	var out []int64
	for _, w := range watches {
		out = append(out, w.ID)
	}
	return out
}

func TestGroupWatches(t *testing.T) {
	watches := []model.Watch{
		watch(1, "100", "5", "2025-06-01", "2025-06-03"),
		watch(2, "200", "9", "2025-06-10", "2025-06-12"),
		watch(3, "100", "6", "2025-06-20", "2025-06-22"),
		watch(4, "100", "7", "2025-06-29", "2025-07-02"),
		watch(5, "100", "8", "2025-07-01", "2025-07-03"),
		watch(6, "100", "5", "2026-06-01", "2026-06-03"),
	}

	groups, singletons := GroupWatches(watches)

	require.Len(t, groups, 1)
	assert.Equal(t, GroupKey{FacilityID: "100", Year: 2025, Month: time.June}, groups[0].Key)
	assert.Equal(t, []int64{1, 3}, ids(groups[0].Watches))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), groups[0].Key.MonthStart())

	assert.Equal(t, []int64{2, 4, 5, 6}, ids(singletons))
}

func TestGroupWatches_SpanningMonthsNeverGrouped(t *testing.T) {
	watches := []model.Watch{
		watch(1, "100", "5", "2025-06-28", "2025-07-02"),
		watch(2, "100", "6", "2025-06-28", "2025-07-02"),
	}

	groups, singletons := GroupWatches(watches)

	assert.Empty(t, groups)
	assert.Equal(t, []int64{1, 2}, ids(singletons))
}

func TestGroupWatches_Empty(t *testing.T) {
	groups, singletons := GroupWatches(nil)
	assert.Empty(t, groups)
	assert.Empty(t, singletons)
}
