// Package biztime provides the city timezone used for report numbering and
// scheduling. All storage and transport use UTC; the city timezone is only
// used to decide calendar boundaries such as the numbering year.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTimezone is used when no city timezone is configured.
	DefaultTimezone = "UTC"
)

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init initializes the city timezone. Should be called once at startup.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// MustInit initializes the city timezone and panics on error.
func MustInit(tz string) {
	if err := Init(tz); err != nil {
		panic(fmt.Sprintf("failed to initialize city timezone %q: %v", tz, err))
	}
}

// Location returns the city timezone, initializing it with UTC when Init was
// never called.
func Location() *time.Location {
	if bizLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to auto-initialize with default timezone: %v", err))
		}
	}
	return bizLocation
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ToBizTimezone converts a UTC time to the city timezone.
func ToBizTimezone(t time.Time) time.Time {
	return t.In(Location())
}

// StartOfDayUTC returns the start of the city day containing t, in UTC.
func StartOfDayUTC(t time.Time) time.Time {
	bizTime := t.In(Location())
	startOfDay := time.Date(bizTime.Year(), bizTime.Month(), bizTime.Day(), 0, 0, 0, 0, Location())
	return startOfDay.UTC()
}
