package recurrence

import (
	"time"

	"countdown/internal/hijri"
	"countdown/internal/model"
)

// calendarSystem is the small slice of calendar arithmetic the resolver
// needs, implemented for the Gregorian and Hijri calendars.
type calendarSystem interface {
	date(t time.Time) (year, month, day int)
	monthLength(year, month int) int
	midnight(year, month, day int, loc *time.Location) time.Time
}

type gregorianCalendar struct{}

func (gregorianCalendar) date(t time.Time) (int, int, int) {
	y, m, d := t.Date()
	return y, int(m), d
}

func (gregorianCalendar) monthLength(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (gregorianCalendar) midnight(year, month, day int, loc *time.Location) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

type hijriCalendar struct{}

func (hijriCalendar) date(t time.Time) (int, int, int) {
	d := hijri.FromGregorian(t)
	return d.Year, d.Month, d.Day
}

func (hijriCalendar) monthLength(year, month int) int {
	return hijri.MonthLength(year, month)
}

func (hijriCalendar) midnight(year, month, day int, loc *time.Location) time.Time {
	return hijri.ToGregorian(year, month, day, loc)
}

func calendarFor(ct model.CalendarType) (calendarSystem, error) {
	switch ct {
	case model.CalendarGregorian, "":
		return gregorianCalendar{}, nil
	case model.CalendarHijri:
		return hijriCalendar{}, nil
	default:
		return nil, ErrUnknownCalendar
	}
}

// clampedMidnight builds midnight of (year, month, day) with day limited
// to the month length, so day 31 never spills into the next month.
func clampedMidnight(cal calendarSystem, year, month, day int, loc *time.Location) time.Time {
	if n := cal.monthLength(year, month); day > n {
		day = n
	}
	return cal.midnight(year, month, day, loc)
}
