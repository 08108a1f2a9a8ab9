package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mic-havock/ridb-backend/internal/model"
)

// ErrMissingAvailability is returned when a payload has no availability map
var ErrMissingAvailability = errors.New("response has no availabilities")

// campsiteResponse is the body of /availability/campsite/{id}/all
type campsiteResponse struct {
	Availability *struct {
		Availabilities map[string]string `json:"availabilities"`
	} `json:"availability"`
}

// monthResponse is the body of /availability/campground/{id}/month
type monthResponse struct {
	Campsites map[string]struct {
		CampsiteID     string            `json:"campsite_id"`
		Availabilities map[string]string `json:"availabilities"`
	} `json:"campsites"`
}

// ParseCampsiteAvailability decodes a single-campsite payload
func ParseCampsiteAvailability(body []byte) (model.DateStatuses, error) {
	var resp campsiteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse campsite response: %w", err)
	}
	if resp.Availability == nil || resp.Availability.Availabilities == nil {
		return nil, ErrMissingAvailability
	}
	return model.DateStatuses(resp.Availability.Availabilities), nil
}

// ParseFacilityMonth decodes a facility-month payload keyed by campsite id
func ParseFacilityMonth(body []byte) (map[string]model.DateStatuses, error) {
	var resp monthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse month response: %w", err)
	}
	if resp.Campsites == nil {
		return nil, ErrMissingAvailability
	}

	campsites := make(map[string]model.DateStatuses, len(resp.Campsites))
	for key, site := range resp.Campsites {
		id := key
		if site.CampsiteID != "" {
			id = site.CampsiteID
		}
		statuses := site.Availabilities
		if statuses == nil {
			statuses = map[string]string{}
		}
		campsites[id] = model.DateStatuses(statuses)
	}
	return campsites, nil
}
