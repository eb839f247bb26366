package service

import "time"

// Clock supplies the current instant. Services take one instead of
// calling time.Now directly so tests can pin time.
type Clock func() time.Time

// UTCClock returns the current time in UTC.
func UTCClock() time.Time {
	return time.Now().UTC()
}
