package domain

import "time"

// Holiday is one organization-wide non-working calendar date. Only the
// date component is meaningful; time-of-day is ignored.
type Holiday struct {
	ID   string
	Name string
	Date time.Time
}
