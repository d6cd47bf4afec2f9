package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCalendar builds a 09:00-17:00 UTC calendar with the given off-days
// and holidays.
func newTestCalendar(t *testing.T, offDays []time.Weekday, holidays ...time.Time) *Calendar {
	t.Helper()
	cal, err := NewCalendar(Settings{
		Location: time.UTC,
		DayStart: 9 * time.Hour,
		DayEnd:   17 * time.Hour,
		OffDays:  offDays,
		Holidays: holidays,
	})
	require.NoError(t, err)
	return cal
}

func TestNewCalendarValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{
			name:     "valid window",
			settings: Settings{Location: time.UTC, DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour},
		},
		{
			name:     "start equals end",
			settings: Settings{Location: time.UTC, DayStart: 9 * time.Hour, DayEnd: 9 * time.Hour},
			wantErr:  true,
		},
		{
			name:     "start after end",
			settings: Settings{Location: time.UTC, DayStart: 17 * time.Hour, DayEnd: 9 * time.Hour},
			wantErr:  true,
		},
		{
			name:     "missing location",
			settings: Settings{DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour},
			wantErr:  true,
		},
		{
			name: "all weekdays off",
			settings: Settings{
				Location: time.UTC,
				DayStart: 9 * time.Hour,
				DayEnd:   17 * time.Hour,
				OffDays: []time.Weekday{
					time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
					time.Thursday, time.Friday, time.Saturday,
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalendar(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsWorkingDay(t *testing.T) {
	holiday := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) // Wednesday
	cal := newTestCalendar(t, []time.Weekday{time.Sunday}, holiday)

	tests := []struct {
		name string
		time time.Time
		want bool
	}{
		{"regular Monday", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), true},
		{"Sunday off-day", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), false},
		{"Saturday working", time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC), true},
		{"holiday", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsWorkingDay(tt.time))
		})
	}
}

func TestIsHolidayNormalizesToDate(t *testing.T) {
	// Holiday entry carries a time component; only the date must matter.
	holiday := time.Date(2025, 5, 1, 15, 30, 0, 0, time.UTC)
	cal := newTestCalendar(t, nil, holiday)

	assert.True(t, cal.IsHoliday(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsHoliday(time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC)))
	assert.False(t, cal.IsHoliday(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)))
}

func TestIsWithinWorkingHours(t *testing.T) {
	cal := newTestCalendar(t, []time.Weekday{time.Sunday})

	tests := []struct {
		name string
		time time.Time
		want bool
	}{
		{"inside window", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), true},
		{"at daily start", time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), true},
		{"at daily end exclusive", time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC), false},
		{"before window", time.Date(2025, 1, 6, 8, 59, 59, 0, time.UTC), false},
		{"after window", time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsWithinWorkingHours(tt.time))
		})
	}
}

func TestWorkingDayBounds(t *testing.T) {
	cal := newTestCalendar(t, nil)
	instant := time.Date(2025, 1, 6, 13, 42, 7, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), cal.StartOfWorkingDay(instant))
	assert.Equal(t, time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC), cal.EndOfWorkingDay(instant))
}

func TestNextWorkingPeriodStart(t *testing.T) {
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	cal := newTestCalendar(t, []time.Weekday{time.Saturday, time.Sunday}, monday)

	// Friday evening: Saturday and Sunday are off, Monday is a holiday,
	// so the next working period opens Tuesday 09:00.
	friday := time.Date(2025, 1, 3, 18, 0, 0, 0, time.UTC)
	next, err := cal.NextWorkingPeriodStart(friday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC), next)

	// Strictly after the current date, even from inside a working day.
	mondayMorning := time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)
	next, err = cal.NextWorkingPeriodStart(mondayMorning)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC), next)
}

func TestNextWorkingPeriodStartScanCap(t *testing.T) {
	// Every day for well over a year is a holiday: the scan must terminate
	// with an error instead of looping.
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	holidays := make([]time.Time, 0, 400)
	for i := 0; i < 400; i++ {
		holidays = append(holidays, start.AddDate(0, 0, i))
	}
	cal := newTestCalendar(t, nil, holidays...)

	_, err := cal.NextWorkingPeriodStart(start)
	assert.Error(t, err)
}
