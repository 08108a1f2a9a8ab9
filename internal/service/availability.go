package service

import (
	"time"

	"github.com/mic-havock/ridb-backend/internal/model"
)

// StatusSource answers the status of one campsite on one day
type StatusSource interface {
	Status(day time.Time) string
}

// StatusSet is the set of status strings that count as reservable
type StatusSet map[string]struct{}

// NewStatusSet builds a StatusSet from a list
func NewStatusSet(statuses []string) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether status is in the set
func (s StatusSet) Contains(status string) bool {
	_, ok := s[status]
	return ok
}

// IsRangeReservable walks [start, end) one day at a time and stops at the
// first day whose status is not in available. An empty range is reservable.
func IsRangeReservable(source StatusSource, start, end time.Time, available StatusSet) bool {
	end = model.Day(end)
	for day := model.Day(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		if !available.Contains(source.Status(day)) {
			return false
		}
	}
	return true
}

// CheckWatch evaluates a watch against the statuses fetched for its campsite
func CheckWatch(w model.Watch, statuses model.DateStatuses, available StatusSet) model.Availability {
	return model.Availability{
		CampsiteID: w.CampsiteID,
		Statuses:   statuses,
		Reservable: IsRangeReservable(statuses, w.StartDate, w.EndDate, available),
	}
}
