package sla

import "time"

// WorkingDuration computes the elapsed working time between start and end.
// It walks calendar days: the first (possibly partial) day contributes the
// overlap of [start, end] with that day's working window, every full day
// strictly in between contributes the whole window when it is a working
// day, and the last day contributes the overlap of the window with
// [start of working day, end]. Returns 0 when end is not after start.
// Deterministic: no clock reads.
func (c *Calendar) WorkingDuration(start, end time.Time) time.Duration {
	if !end.After(start) {
		return 0
	}
	start = start.In(c.loc)
	end = end.In(c.loc)

	// Single-day fast path: no day walk, no double-counting.
	if dateOf(start) == dateOf(end) {
		if !c.IsWorkingDay(start) {
			return 0
		}
		return c.windowOverlap(clockOffset(start), clockOffset(end))
	}

	var total time.Duration
	if c.IsWorkingDay(start) {
		total += c.windowOverlap(clockOffset(start), 24*time.Hour)
	}

	day := midnightOf(start).AddDate(0, 0, 1)
	lastDay := midnightOf(end)
	for day.Before(lastDay) {
		if c.IsWorkingDay(day) {
			total += c.WindowLength()
		}
		day = day.AddDate(0, 0, 1)
	}

	if c.IsWorkingDay(end) {
		total += c.windowOverlap(0, clockOffset(end))
	}
	return total
}

// WorkingHours is WorkingDuration expressed in fractional hours.
func (c *Calendar) WorkingHours(start, end time.Time) float64 {
	return c.WorkingDuration(start, end).Hours()
}

// windowOverlap clips [from, to] (clock offsets within one calendar day)
// to the working window.
func (c *Calendar) windowOverlap(from, to time.Duration) time.Duration {
	if from < c.dayStart {
		from = c.dayStart
	}
	if to > c.dayEnd {
		to = c.dayEnd
	}
	if to <= from {
		return 0
	}
	return to - from
}
