package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCampsiteAvailability(t *testing.T) {
	statuses, err := ParseCampsiteAvailability([]byte(campsitePayload))
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	_, err = ParseCampsiteAvailability([]byte(`{"availability": {}}`))
	assert.ErrorIs(t, err, ErrMissingAvailability)

	_, err = ParseCampsiteAvailability([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingAvailability)

	_, err = ParseCampsiteAvailability([]byte(`<html>`))
	assert.Error(t, err)
}

func TestParseFacilityMonth(t *testing.T) {
	campsites, err := ParseFacilityMonth([]byte(`{"campsites": {
		"5": {"campsite_id": "5", "availabilities": {"2025-06-01T00:00:00Z": "Open"}},
		"6": {}
	}}`))
	require.NoError(t, err)
	assert.Equal(t, "Open", campsites["5"]["2025-06-01T00:00:00Z"])
	require.Contains(t, campsites, "6")
	assert.Empty(t, campsites["6"])

	_, err = ParseFacilityMonth([]byte(`{"count": 0}`))
	assert.ErrorIs(t, err, ErrMissingAvailability)
}
