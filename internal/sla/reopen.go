package sla

import "time"

// ReopenWindow is the wall-clock period after closure during which a
// closed ticket may still be reopened. Deliberately not working-hours
// based: the window runs through weekends and holidays.
const ReopenWindow = 72 * time.Hour

// IsReopenable reports whether a ticket closed at closedAt may be reopened
// at now. Boundary-inclusive: exactly 72h after closure is still allowed.
func IsReopenable(closedAt, now time.Time) bool {
	if closedAt.IsZero() {
		return false
	}
	return !now.After(closedAt.Add(ReopenWindow))
}

// ReopenableUntil returns the last instant the ticket can be reopened.
func ReopenableUntil(closedAt time.Time) time.Time {
	return closedAt.Add(ReopenWindow)
}
