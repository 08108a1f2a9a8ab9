package model

import "time"

const (
	// DateLayout is the calendar date format used in storage and templates
	DateLayout = "2006-01-02"
	// AvailabilityDateLayout is the key format of upstream availability maps
	AvailabilityDateLayout = "2006-01-02T00:00:00Z"
)

// DateStatuses maps an upstream availability date key to its status string
type DateStatuses map[string]string

// Status returns the status recorded for day, or "" when the day is absent
func (s DateStatuses) Status(day time.Time) string {
	return s[Day(day).Format(AvailabilityDateLayout)]
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns midnight UTC on the first day of t's month
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
