package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWatch is returned when a watch fails boundary validation
var ErrInvalidWatch = errors.New("invalid watch")

// Watch is a stored request to be alerted when one campsite becomes
// reservable for a date range. Rows live in the reservations table, which is
// shared with the request handlers that create and edit them.
type Watch struct {
	ID                int64
	Name              string
	EmailAddress      string
	CampsiteID        string
	CampsiteName      string
	CampsiteNumber    string
	FacilityID        string
	StartDate         time.Time
	EndDate           time.Time
	MonitoringActive  bool
	AttemptsMade      int
	SuccessSent       int
	LastSuccessSentAt sql.NullTime
	UserDeleted       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the fields the monitor relies on
func (w *Watch) Validate() error {
	switch {
	case strings.TrimSpace(w.EmailAddress) == "":
		return fmt.Errorf("%w: email address is required", ErrInvalidWatch)
	case strings.TrimSpace(w.CampsiteID) == "":
		return fmt.Errorf("%w: campsite id is required", ErrInvalidWatch)
	case strings.TrimSpace(w.FacilityID) == "":
		return fmt.Errorf("%w: facility id is required", ErrInvalidWatch)
	case w.StartDate.IsZero() || w.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidWatch)
	case Day(w.EndDate).Before(Day(w.StartDate)):
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidWatch,
			FormatDate(w.EndDate), FormatDate(w.StartDate))
	}
	return nil
}

// Expired reports whether the end date is strictly before today
func (w *Watch) Expired(today time.Time) bool {
	return Day(w.EndDate).Before(Day(today))
}

// Suppressed reports whether a notification was sent less than window ago
func (w *Watch) Suppressed(now time.Time, window time.Duration) bool {
	if !w.LastSuccessSentAt.Valid || window <= 0 {
		return false
	}
	return now.Sub(w.LastSuccessSentAt.Time) < window
}

// SpansMonths reports whether start and end fall in different calendar months
func (w *Watch) SpansMonths() bool {
	return !MonthStart(w.StartDate).Equal(MonthStart(w.EndDate))
}

// Availability is the outcome of checking one campsite against a date range
type Availability struct {
	CampsiteID string
	Statuses   DateStatuses
	Reservable bool
}
