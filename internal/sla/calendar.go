// Package sla owns working-hours arithmetic for the grievance SLA engine.
// All storage is UTC; the calendar evaluates instants in a single fixed
// organization timezone. Everything here is a pure function over an
// immutable Calendar value and is safe for concurrent use.
package sla

import (
	"fmt"
	"time"
)

// maxWorkingDayScan caps the forward scan for the next working day so a
// pathological all-holiday configuration fails loudly instead of spinning.
const maxWorkingDayScan = 366

// Settings captures the immutable calendar configuration.
type Settings struct {
	Location *time.Location
	DayStart time.Duration // offset from midnight, e.g. 9h for 09:00
	DayEnd   time.Duration // offset from midnight, e.g. 17h for 17:00
	OffDays  []time.Weekday
	Holidays []time.Time // date component only, interpreted in Location
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

// Calendar answers "is this instant inside working time?" for a fixed
// daily window, weekly off-days, and a holiday date set.
type Calendar struct {
	loc      *time.Location
	dayStart time.Duration
	dayEnd   time.Duration
	offDays  map[time.Weekday]struct{}
	holidays map[civilDate]struct{}
}

// NewCalendar validates the settings and builds an immutable calendar.
// A daily window where start is not strictly before end is a configuration
// error, fatal at startup.
func NewCalendar(s Settings) (*Calendar, error) {
	if s.Location == nil {
		return nil, fmt.Errorf("calendar config: location required")
	}
	if s.DayStart < 0 || s.DayEnd > 24*time.Hour {
		return nil, fmt.Errorf("calendar config: daily window outside 00:00-24:00")
	}
	if s.DayStart >= s.DayEnd {
		return nil, fmt.Errorf("calendar config: daily start %v must be before daily end %v", s.DayStart, s.DayEnd)
	}

	offDays := make(map[time.Weekday]struct{}, len(s.OffDays))
	for _, day := range s.OffDays {
		offDays[day] = struct{}{}
	}
	if len(offDays) >= 7 {
		return nil, fmt.Errorf("calendar config: every weekday marked as off-day")
	}

	holidays := make(map[civilDate]struct{}, len(s.Holidays))
	for _, h := range s.Holidays {
		holidays[dateOf(h.In(s.Location))] = struct{}{}
	}

	return &Calendar{
		loc:      s.Location,
		dayStart: s.DayStart,
		dayEnd:   s.DayEnd,
		offDays:  offDays,
		holidays: holidays,
	}, nil
}

// Location returns the organization timezone the calendar evaluates in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// WindowLength returns the length of one full working day.
func (c *Calendar) WindowLength() time.Duration {
	return c.dayEnd - c.dayStart
}

// IsHoliday checks the instant's calendar date against the holiday set.
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[dateOf(t.In(c.loc))]
	return ok
}

// IsWorkingDay reports whether the instant falls on a day that is neither
// a weekly off-day nor a holiday.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	local := t.In(c.loc)
	if _, off := c.offDays[local.Weekday()]; off {
		return false
	}
	_, holiday := c.holidays[dateOf(local)]
	return !holiday
}

// IsWithinWorkingHours reports whether the time of day is inside the
// working window. The end of the window is exclusive.
func (c *Calendar) IsWithinWorkingHours(t time.Time) bool {
	offset := clockOffset(t.In(c.loc))
	return offset >= c.dayStart && offset < c.dayEnd
}

// StartOfWorkingDay returns the instant's calendar date at the daily start.
func (c *Calendar) StartOfWorkingDay(t time.Time) time.Time {
	return midnightOf(t.In(c.loc)).Add(c.dayStart)
}

// EndOfWorkingDay returns the instant's calendar date at the daily end.
func (c *Calendar) EndOfWorkingDay(t time.Time) time.Time {
	return midnightOf(t.In(c.loc)).Add(c.dayEnd)
}

// NextWorkingPeriodStart returns the earliest working-day start strictly
// after the instant's calendar date. The scan is capped; exceeding it means
// the calendar is misconfigured and the error says so.
func (c *Calendar) NextWorkingPeriodStart(t time.Time) (time.Time, error) {
	day := midnightOf(t.In(c.loc))
	for i := 0; i < maxWorkingDayScan; i++ {
		day = day.AddDate(0, 0, 1)
		if c.IsWorkingDay(day) {
			return day.Add(c.dayStart), nil
		}
	}
	return time.Time{}, fmt.Errorf("no working day found within %d days after %s", maxWorkingDayScan, t.In(c.loc).Format("2006-01-02"))
}

func dateOf(t time.Time) civilDate {
	return civilDate{year: t.Year(), month: t.Month(), day: t.Day()}
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockOffset(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
