// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// DateLayout is the calendar-date layout used in cache keys and imports
const DateLayout = "2006-01-02"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// Clock abstracts the current time so time-dependent logic can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return UTCNow() }
