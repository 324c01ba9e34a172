// Package system provides the wall-clock implementation of contracts.Clock.
package system

import "time"

// Clock reads the system wall clock.
type Clock struct{}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
