package scheduler

import "time"

// Clock supplies wall time to the scheduler.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Windows within each second, measured from the top of the second.
const (
	prepareWindowEnd = 50 * time.Millisecond
	triggerStart     = 600 * time.Millisecond
	triggerEnd       = 700 * time.Millisecond
	triggerClear     = 800 * time.Millisecond
)

func subsecond(t time.Time) time.Duration {
	return time.Duration(t.Nanosecond())
}
